package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSplit = errors.New("split percentages must sum to 100")

// Claim is a pending unbonding withdrawal. It becomes withdrawable once the
// current time reaches ReleaseAt.
type Claim struct {
	ReleaseAt time.Time `json:"release_at"`
	Amount    Amount    `json:"amount"`
}

func (c Claim) IsReleased(now time.Time) bool {
	return !now.Before(c.ReleaseAt)
}

// Split divides minted tokens of a donor-matched buy between three recipients,
// in whole percents.
type Split struct {
	Donor     uint32 `json:"donor"`
	Endowment uint32 `json:"endowment"`
	Dao       uint32 `json:"dao"`
}

func (s Split) Validate() error {
	// parts are bounded first so the sum cannot wrap
	if s.Donor > 100 || s.Endowment > 100 || s.Dao > 100 {
		return ErrInvalidSplit
	}
	if s.Donor+s.Endowment+s.Dao != 100 {
		return ErrInvalidSplit
	}
	return nil
}

func (s Split) String() string {
	return fmt.Sprintf("%d/%d/%d", s.Donor, s.Endowment, s.Dao)
}

// ParseSplit reads the "donor/endowment/dao" notation, e.g. "40/40/20".
func ParseSplit(str string) (Split, error) {
	parts := strings.Split(strings.TrimSpace(str), "/")
	if len(parts) != 3 {
		return Split{}, fmt.Errorf("%w: %q", ErrInvalidSplit, str)
	}
	values := make([]uint32, 3)
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Split{}, fmt.Errorf("%w: %q", ErrInvalidSplit, str)
		}
		values[i] = uint32(v)
	}
	s := Split{Donor: values[0], Endowment: values[1], Dao: values[2]}
	return s, s.Validate()
}
