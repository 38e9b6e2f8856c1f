package domain

import (
	"time"

	"curvebond/domain/model"
)

const (
	PayoutStateNew        = "new"
	PayoutStateInProgress = "inprogress"
	PayoutStateDone       = "done"
	PayoutStateError      = "error"
)

// Payout is reserve released by a claim, waiting to be sent to its holder.
type Payout struct {
	Id          int64        `json:"id"`
	Holder      string       `json:"holder"`
	Amount      model.Amount `json:"amount"`
	State       string       `json:"state"`
	Retried     int          `json:"retried"`
	CreateTime  time.Time    `json:"create_time"`
	RetryTime   *time.Time   `json:"retry_time"`
	SuccessTime *time.Time   `json:"success_time"`
}

func (p *Payout) IsTriable(maxRetry int) bool {
	return (p.State == PayoutStateNew || p.State == PayoutStateError) && p.Retried < maxRetry
}
