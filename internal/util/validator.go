package util

import (
	"fmt"
	"regexp"
)

var (
	usernameRe  = regexp.MustCompile(`^[a-zA-Z0-9-_@.]{3,32}$`)
	groupNameRe = regexp.MustCompile(`^[a-z0-9]{3,64}$`)
)

// ValidateUsername checks the 3-32 char username pattern.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username must be 3 to 32 characters of a-z, A-Z, 0-9, -, _, @ or .")
	}
	return nil
}

// ValidateGroupName checks the 3-64 char lowercase group name pattern.
func ValidateGroupName(name string) error {
	if !groupNameRe.MatchString(name) {
		return fmt.Errorf("group name must be 3 to 64 characters of a-z and 0-9")
	}
	return nil
}

// ValidateNote limits a user note to 500 characters.
func ValidateNote(note string) error {
	if len(note) > 500 {
		return fmt.Errorf("note can be a maximum of 500 characters")
	}
	return nil
}

// ValidateTemplateAffix limits a username prefix or suffix to 20 characters.
func ValidateTemplateAffix(affix string) error {
	if len(affix) > 20 {
		return fmt.Errorf("prefix/suffix can be a maximum of 20 characters")
	}
	return nil
}
