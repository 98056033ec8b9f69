package model

import "fmt"

// Cents is a monetary amount in integer minor units (hundredths of the
// currency unit). All arithmetic on money in the application happens on this
// type; formatting to two decimal places occurs only at the display edge.
type Cents int64

// Mul returns the amount multiplied by a count, e.g. quantity times unit price.
func (c Cents) Mul(n int64) Cents {
	return Cents(int64(c) * n)
}

// String formats the amount with exactly two decimal places.
func (c Cents) String() string {
	v := int64(c)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
