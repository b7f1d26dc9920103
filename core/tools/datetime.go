package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const dateTimeLayout = "Monday, January 2, 2006 at 03:04:05 PM MST"

type dateTimeParameters struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"Optional timezone (e.g., \"America/New_York\", \"Asia/Kolkata\"). Defaults to UTC."`
}

func (t *Toolbox) currentDateTime(_ context.Context, p dateTimeParameters) (string, error) {
	now := t.now()

	timezone := strings.TrimSpace(p.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Sprintf("Current UTC time: %s", now.UTC().Format(time.RFC1123)), nil
	}
	return fmt.Sprintf("Current date and time in %s: %s", timezone, now.In(location).Format(dateTimeLayout)), nil
}
