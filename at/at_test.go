package at

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		line string
		want ResponseType
	}{
		{"ok", "OK", TypeFinal},
		{"error", "ERROR", TypeFinal},
		{"cme error", "+CME ERROR: 10", TypeFinal},
		{"cms error", "+CMS ERROR: 500", TypeFinal},
		{"prompt with space", "> ", TypePrompt},
		{"prompt trimmed", ">", TypePrompt},
		{"notification", "+CMTI: \"SM\",3", TypeURC},
		{"short tag not a notification", "+AB: 1", TypeData},
		{"tagged response line matches notification grammar", "+CSQ: 24,99", TypeURC},
		{"arbitrary text", "some intermediate output", TypeData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.line); got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestIsNotification(t *testing.T) {
	tag, ok := IsNotification(`+CMTI: "SM",3`)
	if !ok || tag != "+CMTI:" {
		t.Errorf("IsNotification = (%q, %v), want (\"+CMTI:\", true)", tag, ok)
	}

	if _, ok := IsNotification("+CSQ: 24,99"); !ok {
		t.Errorf("IsNotification should match any +XXX: line, not just known URCs")
	}

	if _, ok := IsNotification("OK"); ok {
		t.Errorf("IsNotification should not match a plain result code")
	}

	if _, ok := IsNotification("+AB: 1"); ok {
		t.Errorf("IsNotification should require at least 3 tag characters")
	}
}
