package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordPolicyViolation(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{"too short", "Ab1!", pwdMinLenTag},
		{"whitespace", "Abcd 1234!", pwdNoSpaceTag},
		{"all numeric", "12345678", pwdNotAllNumTag},
		{"no upper", "abcd1234!", pwdComplexityTag},
		{"no special", "Abcd1234", pwdComplexityTag},
		{"similar to name", "Janedoe1!", pwdAttrSimTag},
		{"similar to email", "Jdoe2020!", pwdAttrSimTag},
		{"valid", "Xq7#mPz!w2", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantTag, passwordPolicyViolation(tc.pwd, "Jane Doe", "jdoe2020@school.test"))
		})
	}
}
