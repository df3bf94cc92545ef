package auth

import "testing"

func TestSecretEqualExactMatchOnly(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "identical", a: "s1", b: "s1", want: true},
		{name: "case differs", a: "s1", b: "S1", want: false},
		{name: "whitespace differs", a: "s1", b: " s1", want: false},
		{name: "prefix only", a: "s1", b: "s12", want: false},
		{name: "both empty", a: "", b: "", want: true},
		{name: "one empty", a: "s1", b: "", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SecretEqual(tc.a, tc.b); got != tc.want {
				t.Fatalf("SecretEqual(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestNewSecretIsRandomAndURLSafe(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		secret, err := NewSecret()
		if err != nil {
			t.Fatalf("new secret: %v", err)
		}
		if len(secret) == 0 {
			t.Fatal("empty secret")
		}
		for _, r := range secret {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			default:
				t.Fatalf("secret %q contains non-URL-safe rune %q", secret, r)
			}
		}
		if seen[secret] {
			t.Fatalf("duplicate secret %q", secret)
		}
		seen[secret] = true
	}
}
