package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"busease/internal/domain/models"
	"busease/internal/utils"

	"github.com/phpdave11/gofpdf"
)

const supportContact = "support@busease.com"

// TicketService renders booking tickets as PDF.
type TicketService struct {
	RequestID string
}

// Ticket is a rendered PDF ready to attach to an email.
type Ticket struct {
	Filename string
	Subject  string
	Content  []byte
}

type ticketData struct {
	BookingID     string
	BookingDate   time.Time
	PassengerName string
	Email         string
	BusName       string
	Origin        string
	Destination   string
	DepartureDate time.Time
	DepartureTime string
	ArrivalTime   string
	Duration      string
	Seats         []int
	TotalPrice    float64
}

// Render builds the ticket for a booking. updated selects the re-issued variant.
func (s TicketService) Render(b models.Booking, sched models.Schedule, user models.User, updated bool) (Ticket, error) {
	d := ticketData{
		BookingID:     b.ID.String(),
		BookingDate:   b.BookingDate,
		PassengerName: user.Username,
		Email:         user.Email,
		BusName:       sched.Name,
		Origin:        sched.Origin,
		Destination:   sched.Destination,
		DepartureDate: sched.DepartureDate,
		DepartureTime: sched.DepartureTime,
		ArrivalTime:   sched.ArrivalTime,
		Duration:      sched.Duration,
		Seats:         b.SeatNumbers,
		TotalPrice:    b.TotalPrice,
	}

	content, err := buildTicketPDF(d, updated)
	if err != nil {
		return Ticket{}, err
	}
	utils.LogEvent(s.RequestID, "tickets", "render", fmt.Sprintf("booking_id=%s updated=%t bytes=%d", d.BookingID, updated, len(content)))

	t := Ticket{Filename: "BusEase_Ticket.pdf", Subject: "Your Bus Ticket - BusEase", Content: content}
	if updated {
		t.Filename = "BusEase_UpdatedTicket.pdf"
		t.Subject = "Your Updated Bus Ticket - BusEase"
	}
	return t, nil
}

func buildTicketPDF(d ticketData, updated bool) ([]byte, error) {
	title := "Bus Ticket"
	if updated {
		title = "Updated Bus Ticket"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(0, 12, "BusEase")
	pdf.Ln(14)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	section := func(name string, lines []string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, name)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, l := range lines {
			pdf.Cell(0, 6, l)
			pdf.Ln(6)
		}
		pdf.Ln(4)
	}

	section("Booking", []string{
		fmt.Sprintf("Booking ID     : %s", safe(d.BookingID, "-")),
		fmt.Sprintf("Booking Date   : %s", utils.FormatLongDate(d.BookingDate)),
	})
	section("Passenger", []string{
		fmt.Sprintf("Name           : %s", safe(d.PassengerName, "-")),
		fmt.Sprintf("Email          : %s", safe(d.Email, "-")),
	})
	section("Trip", []string{
		fmt.Sprintf("Bus            : %s", safe(d.BusName, "-")),
		fmt.Sprintf("From           : %s", safe(d.Origin, "-")),
		fmt.Sprintf("To             : %s", safe(d.Destination, "-")),
		fmt.Sprintf("Departure      : %s %s", utils.FormatLongDate(d.DepartureDate), safe(d.DepartureTime, "-")),
		fmt.Sprintf("Arrival        : %s", safe(d.ArrivalTime, "-")),
		fmt.Sprintf("Duration       : %s", safe(d.Duration, "-")),
		fmt.Sprintf("Seats          : %s", safe(utils.JoinInts(d.Seats, ", "), "-")),
	})

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Total Price: "+utils.FormatRinggit(d.TotalPrice))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 5, "Please arrive at the terminal at least 30 minutes before departure and present this ticket when boarding.", "", "", false)
	pdf.MultiCell(0, 5, "Bookings can only be cancelled up to 1 day before departure.", "", "", false)
	pdf.MultiCell(0, 5, "Questions? Contact "+supportContact, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
