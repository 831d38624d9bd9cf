// Package reminder emits repayment reminders for credit payment methods.
package reminder

import (
	"fmt"

	"github.com/Veraticus/smartledger/internal/model"
)

// DefaultLeadDays is how many days before the due day the first reminder fires.
const DefaultLeadDays = 3

// MaxLeadDays bounds configurable lead days.
const MaxLeadDays = 15

// Title is the heading of every repayment reminder.
const Title = "信用卡还款提醒"

// Reminder is one repayment notice.
type Reminder struct {
	MethodID int64
	CardID   *int64
	Name     string // method name, or "method-card" for a card
	DueDay   int
	LeadDays int
	OnDueDay bool
}

// Body renders the reminder text.
func (r Reminder) Body() string {
	return fmt.Sprintf("%s 将在 %d 日到期，请关注还款", r.Name, r.DueDay)
}

// ClampLeadDays limits days to 0..MaxLeadDays.
func ClampLeadDays(days int) int {
	return max(0, min(days, MaxLeadDays))
}

// Due returns the reminders for today, the day of the month. Only credit
// methods are considered. A method without cards is reminded on its own due
// day; otherwise each card is, using its own due day and lead days when set
// and the method's otherwise. defaultLead applies when neither sets one.
func Due(methods []model.Method, cards map[int64][]model.Card, today, defaultLead int) []Reminder {
	var out []Reminder
	for _, method := range methods {
		if !method.IsCredit {
			continue
		}

		methodLead := defaultLead
		if method.RepayLeadDays != nil {
			methodLead = *method.RepayLeadDays
		}

		methodCards := cards[method.ID]
		if len(methodCards) == 0 {
			if r, ok := check(method.DueDay, methodLead, today); ok {
				r.MethodID = method.ID
				r.Name = method.Name
				out = append(out, r)
			}
			continue
		}

		for _, card := range methodCards {
			dueDay := method.DueDay
			if card.DueDay != nil {
				dueDay = card.DueDay
			}
			lead := methodLead
			if card.RepayLeadDays != nil {
				lead = *card.RepayLeadDays
			}
			if r, ok := check(dueDay, lead, today); ok {
				cardID := card.ID
				r.MethodID = method.ID
				r.CardID = &cardID
				r.Name = method.Name + "-" + card.Label
				out = append(out, r)
			}
		}
	}
	return out
}

func check(dueDay *int, lead, today int) (Reminder, bool) {
	if dueDay == nil {
		return Reminder{}, false
	}
	due := *dueDay
	switch today {
	case due:
		return Reminder{DueDay: due, LeadDays: lead, OnDueDay: true}, true
	case due - lead:
		return Reminder{DueDay: due, LeadDays: lead}, true
	default:
		return Reminder{}, false
	}
}
