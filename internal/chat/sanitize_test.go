package chat

import "testing"

func TestSanitizeProviderError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "rate limit with boilerplate tail",
			raw: `OpenAI request failed (status 429) with message: ` +
				`{"error":{"message":"Rate limited. For more information visit https://platform.openai.com/docs."}}`,
			want: "Rate limited",
		},
		{
			name: "gemini shape",
			raw:  `Gemini request failed (status 400) with message: {"error":{"message":"API key not valid."}}`,
			want: "API key not valid",
		},
		{
			name: "url tail stripped",
			raw:  `request failed with message: {"error":{"message":"Quota exceeded. See https://example.com/quota"}}`,
			want: "Quota exceeded. See",
		},
		{
			name: "no marker passes through",
			raw:  "connection refused",
			want: "connection refused",
		},
		{
			name: "marker without json passes through",
			raw:  "failed with message: not json at all",
			want: "failed with message: not json at all",
		},
		{
			name: "json without message field passes through",
			raw:  `failed with message: {"error":{"code":429}}`,
			want: `failed with message: {"error":{"code":429}}`,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitizeProviderError(tc.raw); got != tc.want {
				t.Fatalf("sanitizeProviderError(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestCleanProviderMessage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"Rate limited. For more information visit the docs.", "Rate limited"},
		{"Bad key. https://example.com/help", "Bad key"},
		{"  padded  ", "padded"},
		{"Plain message.", "Plain message"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := cleanProviderMessage(tc.in); got != tc.want {
			t.Fatalf("cleanProviderMessage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
