package shop

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	should "github.com/stretchr/testify/assert"
)

func TestComputeSignature(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("order_abc|pay_xyz"))
	exp := hex.EncodeToString(mac.Sum(nil))

	act := ComputeSignature("s3cret", "order_abc", "pay_xyz")
	should.Equal(t, exp, act)
	should.Len(t, act, 64)
	should.Equal(t, strings.ToLower(act), act)
}

func TestVerifySignature(t *testing.T) {
	valid := ComputeSignature("s3cret", "order_abc", "pay_xyz")

	type tcGiven struct {
		secret    string
		orderID   string
		paymentID string
		signature string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   bool
	}

	tests := []testCase{
		{
			name: "valid",
			given: tcGiven{
				secret:    "s3cret",
				orderID:   "order_abc",
				paymentID: "pay_xyz",
				signature: valid,
			},
			exp: true,
		},

		{
			name: "garbage_signature",
			given: tcGiven{
				secret:    "s3cret",
				orderID:   "order_abc",
				paymentID: "pay_xyz",
				signature: "deadbeef",
			},
		},

		{
			name: "wrong_secret",
			given: tcGiven{
				secret:    "other",
				orderID:   "order_abc",
				paymentID: "pay_xyz",
				signature: valid,
			},
		},

		{
			name: "swapped_ids",
			given: tcGiven{
				secret:    "s3cret",
				orderID:   "pay_xyz",
				paymentID: "order_abc",
				signature: valid,
			},
		},

		{
			name: "separator_moved",
			given: tcGiven{
				secret:    "s3cret",
				orderID:   "order_abc|pay",
				paymentID: "_xyz",
				signature: valid,
			},
		},

		{
			name: "prefix_only",
			given: tcGiven{
				secret:    "s3cret",
				orderID:   "order_abc",
				paymentID: "pay_xyz",
				signature: valid[:32],
			},
		},

		{
			name: "uppercase_hex",
			given: tcGiven{
				secret:    "s3cret",
				orderID:   "order_abc",
				paymentID: "pay_xyz",
				signature: strings.ToUpper(valid),
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			act := VerifySignature(tc.given.secret, tc.given.orderID, tc.given.paymentID, tc.given.signature)
			should.Equal(t, tc.exp, act)
		})
	}
}
