package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/metrics"
	"busease/internal/utils"
)

// BookingLedger is the slice of the booking engine the assistant drives.
type BookingLedger interface {
	ListUserBookings(ctx context.Context, actor domain.RequestContext, userID domain.ID) ([]models.BookingView, error)
	ListOngoingBookings(ctx context.Context, actor domain.RequestContext, userID domain.ID) ([]models.BookingView, error)
	CancelBooking(ctx context.Context, actor domain.RequestContext, id domain.ID) (models.BookingView, error)
}

// ScheduleFinder lists schedules for availability questions.
type ScheduleFinder interface {
	List(ctx context.Context, f models.ScheduleFilter) ([]models.Schedule, error)
}

// State is the conversation bag the client sends back on every turn.
type State struct {
	ConfirmCancel     bool `json:"confirmCancel"`
	AwaitingBookingID bool `json:"awaitingBookingId"`
}

// Phase names the state machine position.
func (s State) Phase() string {
	switch {
	case s.AwaitingBookingID:
		return "awaiting_booking_id"
	case s.ConfirmCancel:
		return "confirm_cancel"
	default:
		return "idle"
	}
}

type Reply struct {
	Response string `json:"response"`
	State    State  `json:"conversationState"`
}

// Replies shared with the HTTP layer and tests.
const (
	ReplyFallback = "I couldn't process your request. Please try again later."
	ReplyFailure  = "An error occurred. Please try again later."

	replyLoginCancel      = "Please log in to cancel your booking."
	replyLoginBookings    = "Please log in to access your booking information."
	replyConfirmCancel    = "Do you really want to cancel your booking? Please reply \"yes\" to confirm or \"no\" to abort."
	replyConfirmReprompt  = "Please reply \"yes\" to confirm the cancellation or \"no\" to abort."
	replyPickBooking      = "Please provide the Booking ID of the booking you wish to cancel<br>Reply \"no\" if you do not want cancel the bookings<br><br>Your Bookings:<br><br>"
	replyNothingToCancel  = "You have no active bookings to cancel."
	replyAnythingElse     = "Let me know if you need help with anything else!"
	replyInvalidBooking   = "Invalid Booking ID or you have no such booking. Please provide a valid Booking ID."
	replyMalformedBooking = "Invalid Booking ID format. Please provide the numeric Booking ID shown in your list."
	replyNoBookings       = "You have no bookings."
	replyManyCities       = "I detected multiple cities in your request. Please specify the origin and destination clearly using 'from' and 'to'."
	replyNeedDestination  = "Please specify and check the destination city."
	replyNeedOrigin       = "Please specify and check the origin city."
	replyNeedBoth         = "Please specify both the origin and destination cities."
	replyUnknownCity      = "One or both of the specified cities are not recognized. Please check the city names and try again."
)

var (
	cancelIntentRe  = regexp.MustCompile(`\b(cancel|void|stop|end|refund)\s+(my|a)?\s*(booking|bookings|ticket|tickets|reservation|reservations|bus|buses|bas)\b`)
	cancelQueryRe   = regexp.MustCompile(`\b(how|should|contact|call)\b`)
	myBookingsRe    = regexp.MustCompile(`\bmy\s+(booking|bookings|ticket|tickets|reservation|reservations|bus|buses)\b`)
	myBookingsNotRe = regexp.MustCompile(`\b(cancel|lost|refund|modify|sell|give)\b`)
	yesRe           = regexp.MustCompile(`\byes\b`)
	noRe            = regexp.MustCompile(`\bno\b`)
	fromRe          = regexp.MustCompile(`\bfrom\s+([a-z\s]+?)(?:\s+(?:to|on|at|departing|leaving|heading)\b|[^a-z\s]|$)`)
	toRe            = regexp.MustCompile(`\bto\s+([a-z\s]+?)(?:\s+(?:from|on|at|departing|leaving|heading)\b|[^a-z\s]|$)`)
	fromWordRe      = regexp.MustCompile(`\bfrom\b`)
	toWordRe        = regexp.MustCompile(`\bto\b`)
	markdownEmRe    = regexp.MustCompile(`\*+`)
)

// Resolver turns one chat message and the caller-held state into a reply.
type Resolver struct {
	Bookings  BookingLedger
	Schedules ScheduleFinder
	Generator TextGenerator
	Dates     DateParser
	Gazetteer *Gazetteer
	Loc       *time.Location
	Now       func() time.Time
	RequestID string
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Resolver) loc() *time.Location {
	if r.Loc != nil {
		return r.Loc
	}
	return time.Local
}

// Resolve runs one turn. A returned error means the turn failed and the
// caller should keep its previous state.
func (r Resolver) Resolve(ctx context.Context, actor domain.RequestContext, question string, state State) (Reply, error) {
	text := strings.ToLower(utils.NormalizeSpace(question))

	switch {
	case state.ConfirmCancel:
		return r.confirmCancel(ctx, actor, text)
	case state.AwaitingBookingID:
		return r.pickBooking(ctx, actor, question, text)
	}

	if cancelIntentRe.MatchString(text) && !strings.Contains(text, "seat") && !cancelQueryRe.MatchString(text) {
		metrics.AssistantIntents.WithLabelValues("cancel").Inc()
		if !actor.Authenticated() {
			return Reply{Response: replyLoginCancel}, nil
		}
		return Reply{Response: replyConfirmCancel, State: State{ConfirmCancel: true}}, nil
	}

	if myBookingsRe.MatchString(text) && !myBookingsNotRe.MatchString(text) {
		metrics.AssistantIntents.WithLabelValues("my_bookings").Inc()
		return r.myBookings(ctx, actor)
	}

	if cities := r.gazetteer().Extract(text); len(cities) > 0 {
		metrics.AssistantIntents.WithLabelValues("availability").Inc()
		return r.availability(ctx, text, cities)
	}

	metrics.AssistantIntents.WithLabelValues("generative").Inc()
	return r.generate(ctx, question), nil
}

func (r Resolver) gazetteer() *Gazetteer {
	if r.Gazetteer != nil {
		return r.Gazetteer
	}
	return NewGazetteer(nil)
}

func (r Resolver) confirmCancel(ctx context.Context, actor domain.RequestContext, text string) (Reply, error) {
	if !actor.Authenticated() {
		return Reply{Response: replyLoginCancel}, nil
	}
	switch {
	case yesRe.MatchString(text):
		list, err := r.Bookings.ListOngoingBookings(ctx, actor, actor.UserID)
		if err != nil {
			return Reply{}, err
		}
		if len(list) == 0 {
			return Reply{Response: replyNothingToCancel}, nil
		}
		var sb strings.Builder
		sb.WriteString(replyPickBooking)
		for _, b := range list {
			fmt.Fprintf(&sb, "Booking ID: %d<br>", b.ID)
			fmt.Fprintf(&sb, "Bus Name: %s<br>", scheduleName(b))
			fmt.Fprintf(&sb, "Departure Date: %s<br><br>", r.scheduleDate(b))
		}
		return Reply{Response: sb.String(), State: State{AwaitingBookingID: true}}, nil
	case noRe.MatchString(text):
		return Reply{Response: replyAnythingElse}, nil
	default:
		return Reply{Response: replyConfirmReprompt, State: State{ConfirmCancel: true}}, nil
	}
}

func (r Resolver) pickBooking(ctx context.Context, actor domain.RequestContext, question, text string) (Reply, error) {
	if !actor.Authenticated() {
		return Reply{Response: replyLoginCancel}, nil
	}
	waiting := State{AwaitingBookingID: true}
	if noRe.MatchString(text) {
		return Reply{Response: replyAnythingElse}, nil
	}
	id, err := domain.ParseID(question)
	if err != nil {
		return Reply{Response: replyMalformedBooking, State: waiting}, nil
	}

	list, err := r.Bookings.ListOngoingBookings(ctx, actor, actor.UserID)
	if err != nil {
		return Reply{}, err
	}
	owned := false
	for _, b := range list {
		if b.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		return Reply{Response: replyInvalidBooking, State: waiting}, nil
	}

	metrics.AssistantIntents.WithLabelValues("cancel_booking").Inc()
	view, err := r.Bookings.CancelBooking(ctx, actor, id)
	switch {
	case err == nil:
	case domain.IsPolicy(err):
		return Reply{Response: err.Error() + ". " + replyAnythingElse}, nil
	case domain.IsConflict(err), domain.IsNotFound(err), domain.IsForbidden(err):
		return Reply{Response: replyInvalidBooking, State: waiting}, nil
	default:
		return Reply{}, err
	}
	utils.LogEvent(r.RequestID, "assistant", "cancel_booking", fmt.Sprintf("booking_id=%d user_id=%d", id, actor.UserID))
	return Reply{Response: fmt.Sprintf("Your booking with ID %d for %s on %s has been cancelled.",
		id, scheduleName(view), r.scheduleDate(view))}, nil
}

func (r Resolver) myBookings(ctx context.Context, actor domain.RequestContext) (Reply, error) {
	if !actor.Authenticated() {
		return Reply{Response: replyLoginBookings}, nil
	}
	list, err := r.Bookings.ListUserBookings(ctx, actor, actor.UserID)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Response: replyNoBookings}, nil
	}
	var sb strings.Builder
	sb.WriteString("Here are your bookings:<br><br>")
	for _, b := range list {
		origin, destination := "", ""
		if b.Schedule != nil {
			origin, destination = b.Schedule.Origin, b.Schedule.Destination
		}
		fmt.Fprintf(&sb, "Booking ID: %d<br>", b.ID)
		fmt.Fprintf(&sb, "Bus Name: %s<br>", scheduleName(b))
		fmt.Fprintf(&sb, "Origin: %s<br>", utils.TitleCase(origin))
		fmt.Fprintf(&sb, "Destination: %s<br>", utils.TitleCase(destination))
		fmt.Fprintf(&sb, "Departure Date: %s<br>", r.scheduleDate(b))
		fmt.Fprintf(&sb, "Seat Numbers: %s<br>", utils.JoinInts(b.SeatNumbers, ", "))
		fmt.Fprintf(&sb, "Status: %s<br><br>", utils.TitleCase(string(b.Status)))
	}
	return Reply{Response: sb.String()}, nil
}

func (r Resolver) availability(ctx context.Context, text string, cities []string) (Reply, error) {
	if len(cities) > 2 {
		return Reply{Response: replyManyCities}, nil
	}
	if len(cities) == 1 {
		switch {
		case fromWordRe.MatchString(text):
			return Reply{Response: replyNeedDestination}, nil
		case toWordRe.MatchString(text):
			return Reply{Response: replyNeedOrigin}, nil
		default:
			return Reply{Response: replyNeedBoth}, nil
		}
	}

	origin, destination := r.assignRoute(text, cities)
	if origin == "" || destination == "" {
		return Reply{Response: replyNeedBoth}, nil
	}
	g := r.gazetteer()
	matchedOrigin, okOrigin := g.Match(origin)
	matchedDestination, okDestination := g.Match(destination)
	if !okOrigin || !okDestination {
		return Reply{Response: replyUnknownCity}, nil
	}

	now := r.now().In(r.loc())
	today := utils.StartOfDay(now)
	filter := models.ScheduleFilter{
		Origin:        utils.TitleCase(matchedOrigin),
		Destination:   utils.TitleCase(matchedDestination),
		DepartingFrom: &today,
	}
	var datePhrase string
	if r.Dates != nil {
		if day, ok := r.Dates.ParseDate(text, now); ok {
			filter.Day = &day
			datePhrase = " on " + utils.FormatLongDate(day)
		}
	}

	list, err := r.Schedules.List(ctx, filter)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Response: fmt.Sprintf("Sorry, there are no buses available from %s to %s%s.",
			utils.TitleCase(utils.StripParenthetical(matchedOrigin)),
			utils.TitleCase(utils.StripParenthetical(matchedDestination)),
			datePhrase)}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Available buses from %s to %s%s:<br><br>",
		utils.TitleCase(matchedOrigin), utils.TitleCase(matchedDestination), datePhrase)
	for _, s := range list {
		fmt.Fprintf(&sb, "Bus Name: %s<br>", s.Name)
		fmt.Fprintf(&sb, "Departure Date: %s<br>", utils.FormatLongDate(s.DepartureDate.In(r.loc())))
		fmt.Fprintf(&sb, "Available Seats: %d<br>", s.AvailableSeats())
		fmt.Fprintf(&sb, "Price: RM %s<br><br>", utils.FormatMoney(s.Price))
	}
	sb.WriteString("Please let me know if you'd like to book a ticket or need more information.")
	return Reply{Response: sb.String()}, nil
}

// assignRoute picks origin and destination out of two detected cities.
// Explicit "from X" and "to Y" phrases win over mention order.
func (r Resolver) assignRoute(text string, cities []string) (origin, destination string) {
	from := r.fragmentCity(fromRe, text)
	to := r.fragmentCity(toRe, text)
	switch {
	case from != "" && to != "":
		return from, to
	case from != "":
		return from, otherCity(cities, from)
	case to != "":
		return otherCity(cities, to), to
	default:
		return cities[0], cities[1]
	}
}

// fragmentCity returns the first known city named by a phrase re captures.
// Phrases without a city ("want to go") are skipped.
func (r Resolver) fragmentCity(re *regexp.Regexp, text string) string {
	g := r.gazetteer()
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if found := g.Extract(strings.TrimSpace(m[1])); len(found) > 0 {
			return found[0]
		}
	}
	return ""
}

func otherCity(cities []string, than string) string {
	for _, c := range cities {
		if c != than {
			return c
		}
	}
	return ""
}

func (r Resolver) generate(ctx context.Context, question string) Reply {
	if r.Generator == nil {
		return Reply{Response: ReplyFallback}
	}
	out, err := r.Generator.Generate(ctx, fmt.Sprintf(policyPrompt, question))
	if err != nil {
		utils.LogError(r.RequestID, "assistant", "generate", err)
		return Reply{Response: ReplyFallback}
	}
	out = strings.TrimSpace(markdownEmRe.ReplaceAllString(out, ""))
	if out == "" {
		return Reply{Response: ReplyFallback}
	}
	return Reply{Response: out}
}

func scheduleName(b models.BookingView) string {
	if b.Schedule == nil {
		return "Unknown schedule"
	}
	return b.Schedule.Name
}

func (r Resolver) scheduleDate(b models.BookingView) string {
	if b.Schedule == nil {
		return "-"
	}
	return utils.FormatLongDate(b.Schedule.DepartureDate.In(r.loc()))
}
