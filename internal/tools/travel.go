package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FlightOption is one fare from a flight search.
type FlightOption struct {
	ID        string  `json:"id"`
	Airline   string  `json:"airline"`
	Route     string  `json:"route"`
	Departure string  `json:"departure"`
	Arrival   string  `json:"arrival"`
	Stops     int     `json:"stops"`
	Price     float64 `json:"price"`
}

func (f FlightOption) label() string {
	stops := "direct"
	if f.Stops > 0 {
		stops = fmt.Sprintf("%d stop(s)", f.Stops)
	}
	return fmt.Sprintf("%s %s, dep %s, %s, $%.2f", f.Airline, f.Route, f.Departure, stops, f.Price)
}

// TravelProvider searches and books flights. Fares are sample-backed;
// a fare-search API slots in behind searchFares.
type TravelProvider struct {
	ActionSet

	mu       sync.Mutex
	bookings map[string][]FlightOption // userID -> booked flights
}

func NewTravelProvider() *TravelProvider {
	p := &TravelProvider{bookings: make(map[string][]FlightOption)}
	p.NotifyThreshold = 500

	p.register(Action{
		Name:        "search_flights",
		Description: "Search for available flights between two cities",
		Parameters: map[string]Param{
			"origin":         {Type: "string", Description: "Origin airport/city code", Required: true},
			"destination":    {Type: "string", Description: "Destination airport/city code", Required: true},
			"departure_date": {Type: "string", Description: "Departure date (YYYY-MM-DD)"},
			"passengers":     {Type: "integer"},
		},
	})
	p.register(Action{
		Name:        "book_flight",
		Description: "Book a flight from prior search results",
		Parameters: map[string]Param{
			"flight_id": {Type: "string", Description: "Flight option ID to book"},
			"price":     {Type: "number"},
		},
		Approval: ApprovalConfirm,
	})
	p.register(Action{
		Name:        "get_itinerary",
		Description: "List the user's booked flights",
		Parameters:  map[string]Param{},
	})
	p.register(Action{
		Name:        "cancel_booking",
		Description: "Cancel a booked flight",
		Parameters: map[string]Param{
			"flight_id": {Type: "string", Required: true},
		},
		Approval: ApprovalConfirm,
	})
	return p
}

func (p *TravelProvider) Name() string { return "travel" }

func (p *TravelProvider) Description() string {
	return "Search flights, book trips, and manage itineraries."
}

func (p *TravelProvider) Execute(ctx context.Context, action string, params map[string]any, userID string) (*Result, error) {
	switch action {
	case "search_flights":
		return p.searchFlights(params), nil
	case "book_flight":
		return p.bookFlight(params, userID), nil
	case "get_itinerary":
		return p.itinerary(userID), nil
	case "cancel_booking":
		return p.cancelBooking(params, userID), nil
	default:
		return fail("unknown travel action: %s", action), nil
	}
}

func (p *TravelProvider) searchFares(origin, destination, date string) []FlightOption {
	route := fmt.Sprintf("%s-%s", strings.ToUpper(origin), strings.ToUpper(destination))
	if date == "" {
		date = "2025-09-10"
	}
	return []FlightOption{
		{ID: "FL-" + route + "-1", Airline: "Skyline", Route: route, Departure: date + " 08:15", Arrival: date + " 14:40", Stops: 0, Price: 689.00},
		{ID: "FL-" + route + "-2", Airline: "Pacific West", Route: route, Departure: date + " 11:30", Arrival: date + " 19:05", Stops: 1, Price: 512.40},
		{ID: "FL-" + route + "-3", Airline: "Aurora Air", Route: route, Departure: date + " 22:10", Arrival: date + " 06:55", Stops: 1, Price: 448.90},
	}
}

func (p *TravelProvider) searchFlights(params map[string]any) *Result {
	origin, _ := params["origin"].(string)
	destination, _ := params["destination"].(string)
	date, _ := params["departure_date"].(string)

	fares := p.searchFares(origin, destination, date)
	options := make([]Option, 0, len(fares))
	lines := make([]string, 0, len(fares))
	for i, f := range fares {
		options = append(options, Option{
			Label:  f.label(),
			Params: map[string]any{"flight_id": f.ID, "price": f.Price},
		})
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, f.label()))
	}
	summary := fmt.Sprintf("Found %d flights %s to %s:\n%s", len(fares), strings.ToUpper(origin), strings.ToUpper(destination), strings.Join(lines, "\n"))
	return &Result{Success: true, Data: fares, Summary: summary, Options: options}
}

func (p *TravelProvider) bookFlight(params map[string]any, userID string) *Result {
	flightID, _ := params["flight_id"].(string)
	if flightID == "" {
		return fail("no flight selected; search for flights first and pick an option")
	}
	price := floatParam(params, "price")

	p.mu.Lock()
	p.bookings[userID] = append(p.bookings[userID], FlightOption{ID: flightID, Price: price})
	p.mu.Unlock()

	return ok(fmt.Sprintf("Booked flight %s for $%.2f. Confirmation sent to your email.", flightID, price), map[string]any{"flight_id": flightID, "price": price})
}

func (p *TravelProvider) itinerary(userID string) *Result {
	p.mu.Lock()
	booked := append([]FlightOption(nil), p.bookings[userID]...)
	p.mu.Unlock()

	if len(booked) == 0 {
		return ok("No upcoming trips on file.", nil)
	}
	lines := make([]string, 0, len(booked))
	for _, f := range booked {
		lines = append(lines, f.ID)
	}
	return ok(fmt.Sprintf("Upcoming bookings: %s", strings.Join(lines, ", ")), booked)
}

func (p *TravelProvider) cancelBooking(params map[string]any, userID string) *Result {
	flightID, _ := params["flight_id"].(string)

	p.mu.Lock()
	defer p.mu.Unlock()
	booked := p.bookings[userID]
	for i, f := range booked {
		if f.ID == flightID {
			p.bookings[userID] = append(booked[:i], booked[i+1:]...)
			return ok(fmt.Sprintf("Booking %s cancelled.", flightID), nil)
		}
	}
	return fail("no booking found with id %s", flightID)
}
