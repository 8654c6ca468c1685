package trigger

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	base := Definition{Name: "doorbell", TargetID: "phone-1", Token: "tok", Text: "Hi"}

	tests := []struct {
		name      string
		mutate    func(*Definition)
		wantField string
	}{
		{"complete", func(d *Definition) {}, ""},
		{"missing name", func(d *Definition) { d.Name = "" }, "name"},
		{"whitespace name", func(d *Definition) { d.Name = "  " }, "name"},
		{"missing target", func(d *Definition) { d.TargetID = "" }, "target_id"},
		{"missing token", func(d *Definition) { d.Token = "" }, "token"},
		{"missing text", func(d *Definition) { d.Text = "" }, "text"},
		{"optional fields absent", func(d *Definition) {
			d.Title, d.GroupType, d.IconURL, d.Schedule = "", "", "", ""
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var mfe *MissingFieldError
			if !errors.As(err, &mfe) {
				t.Fatalf("Validate() = %v, want MissingFieldError", err)
			}
			if mfe.Field != tt.wantField {
				t.Fatalf("Field = %q, want %q", mfe.Field, tt.wantField)
			}
		})
	}
}

func TestValidateReportsFirstMissingField(t *testing.T) {
	err := Definition{}.Validate()
	var mfe *MissingFieldError
	if !errors.As(err, &mfe) {
		t.Fatalf("Validate() = %v", err)
	}
	if mfe.Field != "name" {
		t.Fatalf("Field = %q, want name first", mfe.Field)
	}
}

func TestRedactToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "****"},
		{"ab", "****"},
		{"abcd", "****"},
		{"abcdefgh", "abcd…"},
	}
	for _, tt := range tests {
		if got := RedactToken(tt.in); got != tt.want {
			t.Errorf("RedactToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEntityStateAlwaysIdle(t *testing.T) {
	e := NewEntity("id-1", Definition{Name: "doorbell", TargetID: "t", Token: "k", Text: "x"})

	if prev := e.EnterActive(); prev != StateIdle {
		t.Fatalf("previous phase = %q", prev)
	}
	if e.Phase() != StateActive {
		t.Fatalf("phase = %q", e.Phase())
	}
	if e.State() != StateIdle {
		t.Fatalf("State() = %q while active, must always read idle", e.State())
	}

	e.ResetIdle()
	if e.Phase() != StateIdle {
		t.Fatalf("phase = %q after reset", e.Phase())
	}
}
