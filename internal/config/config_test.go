package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set required environment variables
	os.Setenv("BOT_TOKEN", "test_bot_token")
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")
	os.Setenv("AES_ENCRYPTION_KEY", "12345678901234567890123456789012") // exactly 32 bytes
	defer func() {
		os.Unsetenv("BOT_TOKEN")
		os.Unsetenv("DB_PASSWORD")
		os.Unsetenv("JWT_SECRET_KEY")
		os.Unsetenv("AES_ENCRYPTION_KEY")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BotToken != "test_bot_token" {
		t.Errorf("BotToken = %q, want %q", cfg.BotToken, "test_bot_token")
	}

	if cfg.DBPassword != "test_password" {
		t.Errorf("DBPassword = %q, want %q", cfg.DBPassword, "test_password")
	}

	if len(cfg.AESKey) != 32 {
		t.Errorf("AESKey length = %d, want 32", len(cfg.AESKey))
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name: "Missing BOT_TOKEN",
			envVars: map[string]string{
				"DB_PASSWORD":        "password",
				"JWT_SECRET_KEY":     "this_is_a_test_secret_key_with_32_chars_minimum",
				"AES_ENCRYPTION_KEY": "12345678901234567890123456789012",
			},
		},
		{
			name: "Missing DB_PASSWORD",
			envVars: map[string]string{
				"BOT_TOKEN":          "token",
				"JWT_SECRET_KEY":     "this_is_a_test_secret_key_with_32_chars_minimum",
				"AES_ENCRYPTION_KEY": "12345678901234567890123456789012",
			},
		},
		{
			name: "Missing JWT_SECRET_KEY",
			envVars: map[string]string{
				"BOT_TOKEN":          "token",
				"DB_PASSWORD":        "password",
				"AES_ENCRYPTION_KEY": "12345678901234567890123456789012",
			},
		},
		{
			name: "Missing AES_ENCRYPTION_KEY",
			envVars: map[string]string{
				"BOT_TOKEN":      "token",
				"DB_PASSWORD":    "password",
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all env vars
			os.Clearenv()

			// Set only the provided env vars
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Error("LoadConfig() expected error for missing required field, got nil")
			}
		})
	}
}

func TestValidate_JWTSecretTooShort(t *testing.T) {
	cfg := &Config{
		BotToken:   "token",
		DBPassword: "password",
		JWTSecret:  "short", // Less than 32 chars
		AESKey:     "12345678901234567890123456789012",
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() expected error for short JWT secret, got nil")
	}
}

func TestValidate_AESKeyWrongLength(t *testing.T) {
	tests := []struct {
		name   string
		aesKey string
	}{
		{
			name:   "Too short",
			aesKey: "short",
		},
		{
			name:   "Too long",
			aesKey: "123456789012345678901234567890123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				BotToken:   "token",
				DBPassword: "password",
				JWTSecret:  "this_is_a_test_secret_key_with_32_chars_minimum",
				AESKey:     tt.aesKey,
			}

			err := cfg.Validate()
			if err == nil {
				t.Error("Validate() expected error for wrong AES key length, got nil")
			}
		})
	}
}

func TestValidateProductionSecurity(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		shouldErr bool
	}{
		{
			name: "Valid production config",
			cfg: &Config{
				AppEnv:         "production",
				DBSSLMode:      "require",
				JWTSecret:      "production_secret_key_different_from_default",
				AESKey:         "production_aes_key_32_bytes!",
				SuperAdminTgID: 123456789,
			},
			shouldErr: false,
		},
		{
			name: "Development mode - no validation",
			cfg: &Config{
				AppEnv:    "development",
				DBSSLMode: "disable",
			},
			shouldErr: false,
		},
		{
			name: "Production without SSL",
			cfg: &Config{
				AppEnv:         "production",
				DBSSLMode:      "disable",
				JWTSecret:      "production_secret",
				AESKey:         "production_aes_key_32_bytes!",
				SuperAdminTgID: 123456789,
			},
			shouldErr: true,
		},
		{
			name: "Production with default JWT secret",
			cfg: &Config{
				AppEnv:         "production",
				DBSSLMode:      "require",
				JWTSecret:      "your_jwt_secret_minimum_32_chars_here_change_this",
				AESKey:         "production_aes_key_32_bytes!",
				SuperAdminTgID: 123456789,
			},
			shouldErr: true,
		},
		{
			name: "Production without super admin",
			cfg: &Config{
				AppEnv:         "production",
				DBSSLMode:      "require",
				JWTSecret:      "production_secret_key_different",
				AESKey:         "production_aes_key_32_bytes!",
				SuperAdminTgID: 0,
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateProductionSecurity()
			if tt.shouldErr && err == nil {
				t.Error("ValidateProductionSecurity() expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("ValidateProductionSecurity() unexpected error = %v", err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "testuser",
		DBPassword: "testpass",
		DBName:     "testdb",
		DBSSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	dsn := cfg.GetDSN()

	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestGetSettlementCheckInterval(t *testing.T) {
	cfg := &Config{
		SettlementCheckMinutes: 5,
	}

	if got := cfg.GetSettlementCheckInterval(); got != 5*time.Minute {
		t.Errorf("GetSettlementCheckInterval() = %v, want %v", got, 5*time.Minute)
	}
	if got := cfg.GetDepositPendingTTL(); got != 0 {
		t.Errorf("GetDepositPendingTTL() = %v, want 0 (expiry disabled)", got)
	}
}

func TestLoadConfig_AdminList(t *testing.T) {
	os.Clearenv()
	os.Setenv("BOT_TOKEN", "test_bot_token")
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")
	os.Setenv("AES_ENCRYPTION_KEY", "12345678901234567890123456789012")
	os.Setenv("SUPER_ADMIN_TELEGRAM_ID", "100")
	os.Setenv("ADMIN_TELEGRAM_IDS", "200, 300,100")
	defer os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	for _, id := range []int64{100, 200, 300} {
		if !cfg.IsAdmin(id) {
			t.Errorf("IsAdmin(%d) = false, want true", id)
		}
	}
	if cfg.IsAdmin(400) {
		t.Error("IsAdmin(400) = true, want false")
	}
	if cfg.IsAdmin(0) {
		t.Error("IsAdmin(0) = true, want false")
	}
	if got := cfg.AllAdmins(); len(got) != 3 {
		t.Errorf("AllAdmins() = %v, want 3 unique ids", got)
	}
}

func TestLoadConfig_InvalidAdminList(t *testing.T) {
	os.Clearenv()
	os.Setenv("BOT_TOKEN", "test_bot_token")
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")
	os.Setenv("AES_ENCRYPTION_KEY", "12345678901234567890123456789012")
	os.Setenv("ADMIN_TELEGRAM_IDS", "12,abc")
	defer os.Clearenv()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for non-numeric admin id, got nil")
	}
}

func TestPaymentSettings_Validate(t *testing.T) {
	valid := func() PaymentSettings {
		os.Clearenv()
		return loadPaymentSettings()
	}

	tests := []struct {
		name    string
		mutate  func(p *PaymentSettings)
		wantErr bool
	}{
		{
			name:    "Defaults",
			mutate:  func(p *PaymentSettings) {},
			wantErr: false,
		},
		{
			name:    "Withdraw fee above 100",
			mutate:  func(p *PaymentSettings) { p.WithdrawFeePercent = 101 },
			wantErr: true,
		},
		{
			name:    "Negative gift fee",
			mutate:  func(p *PaymentSettings) { p.GiftFeePercent = -1 },
			wantErr: true,
		},
		{
			name: "Max below min",
			mutate: func(p *PaymentSettings) {
				m := p.Methods[MethodShamCash]
				m.MaxAmount = m.MinAmount - 1
				p.Methods[MethodShamCash] = m
			},
			wantErr: true,
		},
		{
			name:    "No methods",
			mutate:  func(p *PaymentSettings) { p.Methods = nil },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPaymentSettings_VisibleMethods(t *testing.T) {
	os.Clearenv()
	os.Setenv("SHAM_CASH_VISIBLE", "false")
	defer os.Clearenv()

	p := loadPaymentSettings()
	got := p.VisibleMethods()
	if len(got) != 1 || got[0] != MethodSyriatelCash {
		t.Errorf("VisibleMethods() = %v, want [%s]", got, MethodSyriatelCash)
	}

	m, ok := p.Method(MethodSyriatelCash)
	if !ok || !m.ChannelRouted {
		t.Error("syriatel_cash should be channel routed")
	}
}

func TestReferralDefaults_Validate(t *testing.T) {
	os.Clearenv()
	r := loadReferralDefaults()
	if err := r.Validate(); err != nil {
		t.Fatalf("default referral settings invalid: %v", err)
	}
	if r.RatePercent != 10 || r.FixedBonus != 2000 || r.MinActiveReferrals != 5 || r.MinChargePerReferral != 100000 || r.FlatEligibilityFloor != 10000 {
		t.Errorf("unexpected referral defaults: %+v", r)
	}

	r.DistributionPeriodDay = 0
	if err := r.Validate(); err == nil {
		t.Error("Validate() expected error for zero period, got nil")
	}
}
