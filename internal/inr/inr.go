// Package inr formats rupee amounts with Indian-locale digit grouping.
package inr

import (
	"math"
	"strconv"
	"strings"
)

// Format renders an amount as Indian-locale currency with no decimal places,
// e.g. 123456 -> "₹1,23,456". The rightmost group has three digits, every
// group after that has two. Rule explanations and interpreter messages both
// depend on this exact rendering, so it must stay byte-stable.
func Format(amount float64) string {
	n := int64(math.Round(amount))

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	return sign + "₹" + group(strconv.FormatInt(n, 10))
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	parts = append(parts, tail)

	return strings.Join(parts, ",")
}
