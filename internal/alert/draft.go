package alert

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/albapepper/mesa-alerts/internal/validate"
)

func init() {
	validate.Register("weekday", func(fl validator.FieldLevel) bool {
		_, err := ParseWeekday(fl.Field().String())
		return err == nil
	})
	validate.Register("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	})
}

// Draft is the input for creating an alert.
type Draft struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Content      string          `json:"content" validate:"required,max=2000"`
	Translations map[string]Text `json:"translations" validate:"omitempty,dive,keys,len=2,endkeys"`
	IsScheduled  bool            `json:"is_scheduled"`
	Days         []string        `json:"schedule_days" validate:"omitempty,dive,weekday"`
	StartTime    string          `json:"start_time" validate:"omitempty,clock"`
	EndTime      string          `json:"end_time" validate:"omitempty,clock"`
	RepeatEvery  *int            `json:"repeat_every_minutes" validate:"omitempty,min=10"`
}

// Build validates the draft and returns a new active alert whose first run
// is scheduled relative to now.
func (d Draft) Build(now time.Time, loc *time.Location) (*Alert, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("invalid alert: %w", err)
	}
	a := &Alert{
		Title:        d.Title,
		Content:      d.Content,
		Translations: d.Translations,
		IsActive:     true,
		IsScheduled:  d.IsScheduled,
		RepeatEvery:  d.RepeatEvery,
		UpdatedAt:    now,
	}
	if d.IsScheduled {
		days, err := ParseDays(d.Days)
		if err != nil {
			return nil, fmt.Errorf("invalid alert: %w", err)
		}
		a.Days = days
		if d.StartTime != "" {
			c, err := ParseClock(d.StartTime)
			if err != nil {
				return nil, fmt.Errorf("invalid alert: %w", err)
			}
			a.Start = &c
		}
		if d.EndTime != "" {
			c, err := ParseClock(d.EndTime)
			if err != nil {
				return nil, fmt.Errorf("invalid alert: %w", err)
			}
			a.End = &c
		}
	}

	if a.IsVisible(now, loc) {
		first := now.UTC()
		a.NextRunAt = &first
	} else {
		a.NextRunAt = a.NextWindowStart(now, loc)
	}
	return a, nil
}
