package model

import "testing"

func TestCents_Mul(t *testing.T) {
	tests := []struct {
		name     string
		price    Cents
		quantity int64
		want     Cents
	}{
		{
			name:     "unit quantity",
			price:    599,
			quantity: 1,
			want:     599,
		},
		{
			name:     "multiple quantity",
			price:    599,
			quantity: 2,
			want:     1198,
		},
		{
			name:     "zero price",
			price:    0,
			quantity: 10,
			want:     0,
		},
		{
			name:     "large quantity stays exact",
			price:    333,
			quantity: 1000000,
			want:     333000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.price.Mul(tt.quantity); got != tt.want {
				t.Errorf("Mul() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCents_String(t *testing.T) {
	tests := []struct {
		name  string
		cents Cents
		want  string
	}{
		{
			name:  "zero",
			cents: 0,
			want:  "0.00",
		},
		{
			name:  "below one unit",
			cents: 99,
			want:  "0.99",
		},
		{
			name:  "single digit hundredths",
			cents: 805,
			want:  "8.05",
		},
		{
			name:  "typical price",
			cents: 599,
			want:  "5.99",
		},
		{
			name:  "negative",
			cents: -1250,
			want:  "-12.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cents.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
