package ei

// DepartedUserName marks a contributor who has left the coop.
const DepartedUserName = "[departed]"

// ResponseStatus is the status code of a coop status response.
type ResponseStatus int32

// Response status codes
const (
	StatusNoError ResponseStatus = iota
	StatusMissingUser
	StatusMissingCoopID
	StatusMissingContractID
	StatusMembershipNotFound
	StatusCoopNotFound
	StatusContractNotFound
	StatusInvalidMembership
	StatusNoUserID
)

// Buff is one entry of a contributor's buff history. ServerTimestamp is the
// number of seconds before the snapshot at which the buff was equipped.
type Buff struct {
	ServerTimestamp float64
	EggLayingRate   float64
	Earnings        float64
}

// Contributor is one player's raw state inside a coop status snapshot
type Contributor struct {
	UserID          string
	UserName        string
	Contribution    float64
	Rate            float64
	Offset          *float64
	TokensSpent     int
	TokensAvailable int
	BuffHistory     []Buff
}

// Departed reports whether the contributor has left the coop.
func (c *Contributor) Departed() bool {
	return c.UserName == DepartedUserName
}

// OfflineSeconds is the time since the contributor's last sync, zero when unknown.
func (c *Contributor) OfflineSeconds() float64 {
	if c.Offset == nil {
		return 0
	}
	return max(0, -*c.Offset)
}

// CoopStatus is a raw coop progress snapshot
type CoopStatus struct {
	ContractID                   string
	CoopID                       string
	Status                       ResponseStatus
	Grade                        Grade
	TotalAmount                  float64
	SecondsRemaining             float64
	SecondsSinceAllGoalsAchieved float64
	Contributors                 []Contributor
}
