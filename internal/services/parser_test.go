package services

import (
	"testing"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name      string
		provider  string
		text      string
		want      ParsedEvent
		wantError string
	}{
		{
			name:     "syriatel first layout",
			provider: "syriatel",
			text:     "تم تحويل 5000 ل.س الى رقم 0991234567 برقم عملية 600123456",
			want:     ParsedEvent{Provider: config.MethodSyriatelCash, Amount: 5000, Counterparty: "0991234567", Reference: "600123456", Pattern: 1},
		},
		{
			name:     "syriatel second layout with separators",
			provider: "syriatel_cash",
			text:     "تحويل مبلغ 12,500 ل.س الى 0991234567 رقم العمليه 600123457",
			want:     ParsedEvent{Provider: config.MethodSyriatelCash, Amount: 12500, Counterparty: "0991234567", Reference: "600123457", Pattern: 2},
		},
		{
			name:     "syriatel third layout",
			provider: "Syriatel",
			text:     "تحويل 3000 ل.س لرقم 0991234567 عملية 600123458",
			want:     ParsedEvent{Provider: config.MethodSyriatelCash, Amount: 3000, Counterparty: "0991234567", Reference: "600123458", Pattern: 3},
		},
		{
			name:     "sham received with arabic digits",
			provider: "cham",
			text:     "تم استلام ٢٠٠٠ ل.س من 0933111222 رقم العمليه AB12CD",
			want:     ParsedEvent{Provider: config.MethodShamCash, Amount: 2000, Counterparty: "0933111222", Reference: "AB12CD", Pattern: 1},
		},
		{
			name:     "sham short layout with zero fraction",
			provider: "sham_cash",
			text:     "تحويل 1500.00 ل.س من 0933111222 رقم XY987",
			want:     ParsedEvent{Provider: config.MethodShamCash, Amount: 1500, Counterparty: "0933111222", Reference: "XY987", Pattern: 2},
		},
		{
			name:      "fractional amount is not a match",
			provider:  "syriatel",
			text:      "تم تحويل 1500.50 ل.س الى رقم 0991234567 برقم عملية 600123456",
			wantError: errors.ErrCodeNoMatch,
		},
		{
			name:      "unrelated text",
			provider:  "syriatel",
			text:      "رصيدك الحالي 100 ل.س",
			wantError: errors.ErrCodeNoMatch,
		},
		{
			name:      "sham text under the wrong provider",
			provider:  "syriatel",
			text:      "تم استلام 2000 ل.س من 0933111222 رقم العمليه AB12CD",
			wantError: errors.ErrCodeNoMatch,
		},
		{
			name:      "unknown provider",
			provider:  "mtn",
			text:      "anything",
			wantError: errors.ErrCodeUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.provider, tt.text)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantError, errors.CodeOf(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNormalizeProvider(t *testing.T) {
	key, ok := NormalizeProvider(" CHAM ")
	assert.True(t, ok)
	assert.Equal(t, config.MethodShamCash, key)

	_, ok = NormalizeProvider("paypal")
	assert.False(t, ok)

	assert.Equal(t, []string{config.MethodShamCash, config.MethodSyriatelCash}, NewParser().Providers())
}
