// Package google mirrors tasks into a Google Calendar.
package google

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/onetaskassistant/onetask/pkg/index"
)

// Open connects to the calendar named calendarName using an authorized
// client, such as the one auth.Provider.Client returns.
func Open(ctx context.Context, hc *http.Client, calendarName string, idx *index.EventIndex, logger *zap.Logger, opts ...option.ClientOption) (*Calendar, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}

	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	for _, item := range list.Items {
		if item.Summary == calendarName {
			return NewCalendar(srv, item.Id, idx, logger), nil
		}
	}
	return nil, fmt.Errorf("calendar %q not found", calendarName)
}
