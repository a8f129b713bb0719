package models

import "testing"

func TestAllStagesCompleteRequiresAllThreeStages(t *testing.T) {
	cases := []struct {
		name   string
		pdf    bool
		upload bool
		email  bool
		want   bool
	}{
		{"none done", false, false, false, false},
		{"pdf only", true, false, false, false},
		{"pdf and upload", true, true, false, false},
		{"all three", true, true, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Receipt{PDFGenerated: tc.pdf, CloudStorageUploaded: tc.upload, EmailSent: tc.email}
			if got := r.AllStagesComplete(); got != tc.want {
				t.Fatalf("AllStagesComplete() = %v, want %v", got, tc.want)
			}
		})
	}
}
