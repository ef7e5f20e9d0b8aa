package identity

// DemoInstitution is the institution given to auto-created demo accounts.
const DemoInstitution = "Demo University"

// DemoAccount is a built-in account that is created on its first failed
// sign-in with the matching password.
type DemoAccount struct {
	Email    string
	Password string
	Name     string
	Role     RoleName
}

var demoAccounts = map[string]DemoAccount{
	"admin@school.edu":   {Email: "admin@school.edu", Password: "admin123", Name: "Admin User", Role: RoleAdmin},
	"teacher@school.edu": {Email: "teacher@school.edu", Password: "teacher123", Name: "Teacher User", Role: RoleTeacher},
	"student@school.edu": {Email: "student@school.edu", Password: "student123", Name: "Student User", Role: RoleStudent},
}

// LookupDemoAccount returns the demo account for an email and password pair.
func LookupDemoAccount(email, password string) (DemoAccount, bool) {
	acc, ok := demoAccounts[NormalizeEmail(email)]
	if !ok || acc.Password != password {
		return DemoAccount{}, false
	}
	return acc, true
}

// Profile returns the profile an auto-created demo account receives.
func (d DemoAccount) Profile(userID string) *Profile {
	return &Profile{
		UserID:      userID,
		Name:        d.Name,
		Email:       d.Email,
		Role:        d.Role,
		Institution: DemoInstitution,
	}
}
