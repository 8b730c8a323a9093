package pipeline

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{
			"clean passthrough",
			"Up next, a classic from the archive.",
			"Up next, a classic from the archive.",
		},
		{
			"strips lead-in prefix",
			"Script: Good morning, you're listening to Aether FM.",
			"Good morning, you're listening to Aether FM.",
		},
		{
			"strips dj prefix",
			"DJ: Here comes the weather.",
			"Here comes the weather.",
		},
		{
			"truncates at note",
			"That was a great one.\n\nNote: I kept this under 30 words.",
			"That was a great one.",
		},
		{
			"truncates at fence",
			"Stay tuned for more.\n```\nword count: 4\n```",
			"Stay tuned for more.",
		},
		{
			"truncates at earliest pattern",
			"Coming up next. --- Here is an alternative version: ***",
			"Coming up next.",
		},
		{
			"never truncates at position zero",
			"---",
			"---",
		},
		{
			"strips emoji",
			"Turn it up \U0001F3B8 and enjoy",
			"Turn it up and enjoy",
		},
		{
			"collapses whitespace",
			"Line one.   \n\n\n\nLine   two.\n\n",
			"Line one.\n\nLine two.",
		},
		{
			"prefix then stop pattern",
			"Sure! Here's the intro. Let me know if you'd like changes.",
			"Here's the intro.",
		},
		{
			"empty input",
			"   \n\n  ",
			"",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Sanitize(c.in); got != c.want {
				t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}
