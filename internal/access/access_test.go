package access

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionManage, true},
		{RoleOwner, ActionManage, true},
		{RoleOwner, ActionSubmit, true},
		{RoleEditor, ActionWrite, true},
		{RoleEditor, ActionManage, false},
		{RoleMentor, ActionRead, true},
		{RoleMentor, ActionWrite, false},
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionWrite, false},
		{Role("bogus"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("mentor"); got != RoleMentor {
		t.Errorf("Normalize(mentor) = %s", got)
	}
	if got := Normalize("superuser"); got != RoleViewer {
		t.Errorf("Normalize(superuser) = %s, want viewer", got)
	}
}
