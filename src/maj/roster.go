package maj

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/mkmccarty/CoopBoard/src/ei"
)

var codePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ReplayPrefix marks a coop code whose snapshot is read from the archive.
const ReplayPrefix = "!!"

// SinkRole is the roster role of a coop's sink player.
const SinkRole = "sink"

// CoopFlags is the roster's flag object for a coop.
type CoopFlags struct {
	SpeedRun bool `json:"speedRun"`
	FastRun  bool `json:"fastRun"`
	AnyGrade bool `json:"anyGrade"`
	Carry    bool `json:"carry"`
}

// Flags converts the roster object to a Flags set.
func (c CoopFlags) Flags() Flags {
	var f Flags
	if c.SpeedRun {
		f |= SpeedRun
	}
	if c.FastRun {
		f |= FastRun
	}
	if c.AnyGrade {
		f |= AnyGrade
	}
	if c.Carry {
		f |= Carry
	}
	return f
}

// User is a roster member of a coop.
type User struct {
	ID         string `json:"ID"`
	IGN        string `json:"IGN"`
	Role       string `json:"role"`
	IsExternal bool   `json:"isExternal"`
}

// Coop is one roster entry as returned by the grouping service.
type Coop struct {
	Code      string    `json:"code"`
	CoopFlags CoopFlags `json:"coopFlags"`
	Grade     string    `json:"grade"`
	Users     []User    `json:"users"`
}

// Item is one published roster batch for a contract.
type Item struct {
	Coops []Coop `json:"coops"`
}

// Response is the body of the roster endpoint.
type Response struct {
	Items []Item `json:"items"`
}

// Entry is a validated roster code with its flags and members.
type Entry struct {
	Code  string
	Flags Flags
	Users []User
}

// NormalizeCode lowercases and trims a coop code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ValidateCode checks a normalized code against the roster's code pattern.
func ValidateCode(contractID, code string) error {
	if !codePattern.MatchString(code) {
		return ei.NewCoopError(ei.ErrValidation, contractID, code, fmt.Errorf("malformed coop code %q", code))
	}
	return nil
}

// Entries returns the validated coops of the latest roster batch.
// Malformed codes are logged and dropped.
func (r *Response) Entries(contractID string) []Entry {
	if len(r.Items) == 0 {
		return nil
	}
	latest := r.Items[len(r.Items)-1]
	entries := make([]Entry, 0, len(latest.Coops))
	for _, c := range latest.Coops {
		code := NormalizeCode(c.Code)
		if err := ValidateCode(contractID, code); err != nil {
			log.Printf("roster: %v", err)
			continue
		}
		entries = append(entries, Entry{Code: code, Flags: c.CoopFlags.Flags(), Users: c.Users})
	}
	return entries
}
