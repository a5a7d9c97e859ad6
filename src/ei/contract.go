package ei

import (
	"fmt"
	"slices"
	"time"
)

// Grade is a contract grade tier.
type Grade int32

// Grade tiers as numbered by the game protocol.
const (
	GradeUnset Grade = iota
	GradeC
	GradeB
	GradeA
	GradeAA
	GradeAAA
)

var gradeNames = map[Grade]string{
	GradeUnset: "UNSET",
	GradeC:     "C",
	GradeB:     "B",
	GradeA:     "A",
	GradeAA:    "AA",
	GradeAAA:   "AAA",
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("GRADE_%d", int32(g))
}

// GradeMultiplier is the score multiplier for each grade
var GradeMultiplier = map[Grade]float64{
	GradeC:   1.0,
	GradeB:   2.0,
	GradeA:   3.5,
	GradeAA:  5.0,
	GradeAAA: 7.0,
}

// Multiplier returns the grade's score multiplier. Unmapped grades are not scoreable.
func (g Grade) Multiplier() (float64, bool) {
	m, ok := GradeMultiplier[g]
	return m, ok
}

// GradeSpec holds the goals and time limit of one grade tier.
type GradeSpec struct {
	Grade         Grade
	Goals         []float64
	LengthSeconds float64
}

// EggGoal is the largest goal of the tier.
func (g GradeSpec) EggGoal() float64 {
	if len(g.Goals) == 0 {
		return 0
	}
	return slices.Max(g.Goals)
}

// Contract is the immutable definition of a coop contract
type Contract struct {
	ID              string
	Name            string
	Description     string
	Egg             Egg
	CoopAllowed     bool
	MaxCoopSize     int
	MinutesPerToken float64
	LengthSeconds   float64
	Legacy          bool
	SeasonID        string
	StartTime       time.Time
	ExpirationTime  time.Time
	Grades          map[Grade]GradeSpec
}

// Grade returns the tier matching g.
func (c *Contract) Grade(g Grade) (GradeSpec, bool) {
	spec, ok := c.Grades[g]
	return spec, ok
}

// Egg is the egg type produced for a contract.
type Egg int32

var eggNames = map[Egg]string{
	1:   "Edible",
	2:   "Superfood",
	3:   "Medical",
	4:   "Rocket Fuel",
	5:   "Super Material",
	6:   "Fusion",
	7:   "Quantum",
	8:   "Immortality",
	9:   "Tachyon",
	10:  "Graviton",
	11:  "Dilithium",
	12:  "Prodigy",
	13:  "Terraform",
	14:  "Antimatter",
	15:  "Dark Matter",
	16:  "AI",
	17:  "Nebula",
	18:  "Universe",
	19:  "Enlightenment",
	100: "Chocolate",
	101: "Easter",
	102: "Water Balloon",
	103: "Firework",
	104: "Pumpkin",
	200: "Custom",
}

func (e Egg) String() string {
	if name, ok := eggNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Egg(%d)", int32(e))
}
