package models

import "testing"

func TestUserCanEdit(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{ROLE_READER, false},
		{ROLE_EDITOR, true},
		{ROLE_ADMIN, true},
		{"", false},
	}

	for _, tt := range tests {
		u := User{Role: tt.role}
		if got := u.CanEdit(); got != tt.want {
			t.Errorf("CanEdit() with role %q = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestUserIsActive(t *testing.T) {
	if !(&User{Status: STATUS_ACTIVE}).IsActive() {
		t.Error("active user reported inactive")
	}
	if (&User{Status: STATUS_DISABLED}).IsActive() {
		t.Error("disabled user reported active")
	}
}

func TestUserValidate(t *testing.T) {
	valid := User{
		Name:   "Sumin",
		Email:  "sumin@example.com",
		Role:   ROLE_READER,
		Status: STATUS_ACTIVE,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid user rejected: %v", err)
	}

	invalid := valid
	invalid.Email = "not-an-email"
	if err := invalid.Validate(); err == nil {
		t.Error("invalid email accepted")
	}
}
