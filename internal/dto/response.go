package dto

import (
	"math"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/service"
)

// Envelope wraps every successful response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorBody is the body of every failed response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func OK(data any, message string) Envelope { return Envelope{Success: true, Data: data, Message: message} }

func Fail(message string) ErrorBody { return ErrorBody{Success: false, Error: message} }

func round2(f float64) float64 { return math.Round(f*100) / 100 }

type UserResponse struct {
	ID             uint64     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Phone          *string    `json:"phone_number,omitempty"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	OfficerBadgeID *string    `json:"officer_badge_id,omitempty"`
	Department     *string    `json:"department,omitempty"`
	IsVerified     bool       `json:"is_verified"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FromUser never carries the password hash.
func FromUser(u *model.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		FullName:       u.FullName,
		Phone:          u.Phone,
		Role:           u.Role,
		Status:         u.Status,
		OfficerBadgeID: u.OfficerBadgeID,
		Department:     u.Department,
		IsVerified:     u.IsVerified,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
	}
}

type TokenResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type AuthResponse struct {
	User    UserResponse  `json:"user"`
	Access  TokenResponse `json:"access"`
	Refresh TokenResponse `json:"refresh"`
}

func FromSession(s *service.Session) AuthResponse {
	return AuthResponse{
		User:    FromUser(s.User),
		Access:  TokenResponse{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: TokenResponse{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
	}
}

type ZoneResponse struct {
	ID                     uint64    `json:"id"`
	ZoneName               string    `json:"zone_name"`
	Address                string    `json:"address"`
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
	TotalCapacity          int       `json:"total_capacity"`
	CurrentOccupancy       int       `json:"current_occupancy"`
	ContractorLimit        int       `json:"contractor_limit"`
	ContractorName         string    `json:"contractor_name"`
	ContractorContact      *string   `json:"contractor_contact,omitempty"`
	ContractorEmail        *string   `json:"contractor_email,omitempty"`
	ContractorID           *uint64   `json:"contractor_id,omitempty"`
	HourlyRateCents        int64     `json:"hourly_rate_cents"`
	HourlyRate             string    `json:"hourly_rate"`
	PenaltyPerVehicleCents int64     `json:"penalty_per_vehicle_cents"`
	OperatingHours         string    `json:"operating_hours"`
	Status                 string    `json:"status"`
	OccupancyPercentage    float64   `json:"occupancy_percentage"`
	ViolationStatus        string    `json:"violation_status"`
	ExcessVehicles         int       `json:"excess_vehicles"`
	AvailableSpaces        int       `json:"available_spaces"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// FromZone adds the derived dashboard fields.
func FromZone(z *model.Zone) ZoneResponse {
	free := z.TotalCapacity - z.CurrentOccupancy
	if free < 0 {
		free = 0
	}
	return ZoneResponse{
		ID:                     z.ID,
		ZoneName:               z.ZoneName,
		Address:                z.Address,
		Latitude:               z.Latitude,
		Longitude:              z.Longitude,
		TotalCapacity:          z.TotalCapacity,
		CurrentOccupancy:       z.CurrentOccupancy,
		ContractorLimit:        z.ContractorLimit,
		ContractorName:         z.ContractorName,
		ContractorContact:      z.ContractorContact,
		ContractorEmail:        z.ContractorEmail,
		ContractorID:           z.ContractorID,
		HourlyRateCents:        z.HourlyRateCents,
		HourlyRate:             service.Rupees(z.HourlyRateCents),
		PenaltyPerVehicleCents: z.PenaltyPerVehicleCents,
		OperatingHours:         z.OperatingHours,
		Status:                 z.Status,
		OccupancyPercentage:    round2(z.OccupancyPercentage()),
		ViolationStatus:        z.ViolationStatus(),
		ExcessVehicles:         z.ExcessVehicles(),
		AvailableSpaces:        free,
		CreatedAt:              z.CreatedAt,
		UpdatedAt:              z.UpdatedAt,
	}
}

func FromZones(zs []model.Zone) []ZoneResponse {
	out := make([]ZoneResponse, 0, len(zs))
	for i := range zs {
		out = append(out, FromZone(&zs[i]))
	}
	return out
}

type SlotResponse struct {
	ID         uint64 `json:"id"`
	SlotNumber string `json:"slot_number"`
	SlotType   string `json:"slot_type"`
	Status     string `json:"status"`
}

func FromSlots(ss []model.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, SlotResponse{ID: s.ID, SlotNumber: s.SlotNumber, SlotType: s.SlotType, Status: s.Status})
	}
	return out
}

type ZoneStatsResponse struct {
	TotalZones          int     `json:"total_zones"`
	ActiveZones         int     `json:"active_zones"`
	ViolatingZones      int     `json:"violating_zones"`
	TotalCapacity       int     `json:"total_capacity"`
	TotalOccupancy      int     `json:"total_occupancy"`
	OccupancyPercentage float64 `json:"occupancy_percentage"`
	AverageOccupancy    float64 `json:"average_occupancy"`
}

func FromZoneStats(s model.ZoneStats) ZoneStatsResponse {
	return ZoneStatsResponse{
		TotalZones:          s.TotalZones,
		ActiveZones:         s.ActiveZones,
		ViolatingZones:      s.ViolatingZones,
		TotalCapacity:       s.TotalCapacity,
		TotalOccupancy:      s.TotalOccupancy,
		OccupancyPercentage: round2(s.OccupancyPercentage()),
		AverageOccupancy:    round2(s.AverageOccupancy()),
	}
}

type ZoneExcessResponse struct {
	ZoneID             uint64 `json:"zone_id"`
	ZoneName           string `json:"zone_name"`
	CurrentOccupancy   int    `json:"current_occupancy"`
	ContractorLimit    int    `json:"contractor_limit"`
	ExcessVehicles     int    `json:"excess_vehicles"`
	PenaltyAmountCents int64  `json:"penalty_amount_cents"`
	PenaltyAmount      string `json:"penalty_amount"`
	Severity           string `json:"severity"`
}

func FromZoneExcess(xs []service.ZoneExcess) []ZoneExcessResponse {
	out := make([]ZoneExcessResponse, 0, len(xs))
	for _, x := range xs {
		out = append(out, ZoneExcessResponse{
			ZoneID:             x.Zone.ID,
			ZoneName:           x.Zone.ZoneName,
			CurrentOccupancy:   x.Zone.CurrentOccupancy,
			ContractorLimit:    x.Zone.ContractorLimit,
			ExcessVehicles:     x.Excess,
			PenaltyAmountCents: x.PenaltyCents,
			PenaltyAmount:      service.Rupees(x.PenaltyCents),
			Severity:           x.Severity,
		})
	}
	return out
}

type ViolationResponse struct {
	ID                 uint64     `json:"id"`
	ZoneID             uint64     `json:"zone_id"`
	ZoneName           string     `json:"zone_name,omitempty"`
	ExcessVehicles     int        `json:"excess_vehicles"`
	PenaltyAmountCents int64      `json:"penalty_amount_cents"`
	PenaltyAmount      string     `json:"penalty_amount"`
	Severity           string     `json:"severity"`
	Resolved           bool       `json:"resolved"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	Notes              string     `json:"notes"`
	Timestamp          time.Time  `json:"timestamp"`
}

func FromViolation(v *model.Violation) ViolationResponse {
	return ViolationResponse{
		ID:                 v.ID,
		ZoneID:             v.ZoneID,
		ZoneName:           v.ZoneName,
		ExcessVehicles:     v.ExcessVehicles,
		PenaltyAmountCents: v.PenaltyAmountCents,
		PenaltyAmount:      service.Rupees(v.PenaltyAmountCents),
		Severity:           v.Severity,
		Resolved:           v.Resolved,
		ResolvedAt:         v.ResolvedAt,
		Notes:              v.Notes,
		Timestamp:          v.DetectedAt,
	}
}

// OccupancyResponse reports the reconciled zone and its violation.
type OccupancyResponse struct {
	Zone          ZoneResponse       `json:"zone"`
	Action        string             `json:"violation_action"`
	ViolationOpen bool               `json:"violation_open"`
	Violation     *ViolationResponse `json:"violation,omitempty"`
}

func FromReconcile(r *service.ReconcileResult) OccupancyResponse {
	out := OccupancyResponse{
		Zone:          FromZone(&r.Zone),
		Action:        string(r.Action),
		ViolationOpen: r.ViolationOpen,
	}
	if r.Violation != nil {
		v := FromViolation(r.Violation)
		out.Violation = &v
	}
	return out
}

type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type ViolationListResponse struct {
	Violations []ViolationResponse `json:"violations"`
	Pagination Pagination          `json:"pagination"`
}

func FromViolationPage(p *service.ViolationPage) ViolationListResponse {
	items := make([]ViolationResponse, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, FromViolation(&p.Items[i]))
	}
	return ViolationListResponse{Violations: items, Pagination: Pagination{Page: p.Page, Pages: p.Pages, Total: p.Total}}
}

type ViolationStatsResponse struct {
	Total            int    `json:"total"`
	Pending          int    `json:"pending"`
	Resolved         int    `json:"resolved"`
	CriticalPending  int    `json:"critical_pending"`
	TotalPenaltyOpen string `json:"total_penalty_open"`
}

func FromViolationStats(s model.ViolationStats) ViolationStatsResponse {
	return ViolationStatsResponse{
		Total:            s.Total,
		Pending:          s.Pending,
		Resolved:         s.Resolved,
		CriticalPending:  s.CriticalPending,
		TotalPenaltyOpen: service.Rupees(s.TotalPenaltyOpen),
	}
}

type WalletResponse struct {
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

func FromWallet(w *model.Wallet) WalletResponse {
	return WalletResponse{BalanceCents: w.BalanceCents, Balance: service.Rupees(w.BalanceCents)}
}

type TransactionResponse struct {
	ID                uint64    `json:"id"`
	Type              string    `json:"transaction_type"`
	AmountCents       int64     `json:"amount_cents"`
	Amount            string    `json:"amount"`
	BalanceAfterCents int64     `json:"balance_after_cents"`
	Description       string    `json:"description"`
	ReferenceID       string    `json:"reference_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

func FromTransaction(t *model.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:                t.ID,
		Type:              t.Type,
		AmountCents:       t.AmountCents,
		Amount:            service.Rupees(t.AmountCents),
		BalanceAfterCents: t.BalanceAfterCents,
		Description:       t.Description,
		ReferenceID:       t.ReferenceID,
		Status:            t.Status,
		CreatedAt:         t.CreatedAt,
	}
}

func FromTransactions(ts []model.WalletTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for i := range ts {
		out = append(out, FromTransaction(&ts[i]))
	}
	return out
}

type LedgerAuditResponse struct {
	WalletID        uint64 `json:"wallet_id"`
	BalanceCents    int64  `json:"balance_cents"`
	ReplayedCents   int64  `json:"replayed_cents"`
	Entries         int    `json:"entries"`
	Consistent      bool   `json:"consistent"`
	FirstMismatchID uint64 `json:"first_mismatch_id,omitempty"`
}

func FromAudit(a *service.LedgerAudit) LedgerAuditResponse {
	return LedgerAuditResponse{
		WalletID:        a.WalletID,
		BalanceCents:    a.BalanceCents,
		ReplayedCents:   a.ReplayedCents,
		Entries:         a.Entries,
		Consistent:      a.Consistent,
		FirstMismatchID: a.FirstMismatchID,
	}
}

type VehicleResponse struct {
	ID           uint64    `json:"id"`
	LicensePlate string    `json:"license_plate"`
	VehicleType  string    `json:"vehicle_type"`
	Model        string    `json:"model"`
	Color        string    `json:"color"`
	CreatedAt    time.Time `json:"created_at"`
}

func FromVehicle(v *model.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:           v.ID,
		LicensePlate: v.LicensePlate,
		VehicleType:  v.VehicleType,
		Model:        v.Model,
		Color:        v.Color,
		CreatedAt:    v.CreatedAt,
	}
}

func FromVehicles(vs []model.Vehicle) []VehicleResponse {
	out := make([]VehicleResponse, 0, len(vs))
	for i := range vs {
		out = append(out, FromVehicle(&vs[i]))
	}
	return out
}

type BookingResponse struct {
	ID              uint64     `json:"id"`
	Code            string     `json:"booking_code"`
	ZoneID          uint64     `json:"zone_id"`
	ZoneName        string     `json:"zone_name,omitempty"`
	SlotNumber      string     `json:"slot_number,omitempty"`
	VehicleID       uint64     `json:"vehicle_id"`
	LicensePlate    string     `json:"license_plate,omitempty"`
	BookingStart    time.Time  `json:"booking_start"`
	BookingEnd      time.Time  `json:"booking_end"`
	BookingType     string     `json:"booking_type"`
	Status          string     `json:"status"`
	TotalPriceCents int64      `json:"total_price_cents"`
	TotalPrice      string     `json:"total_price"`
	EntryTime       *time.Time `json:"entry_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func FromBooking(b *model.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		Code:            b.Code(),
		ZoneID:          b.ZoneID,
		ZoneName:        b.ZoneName,
		SlotNumber:      b.SlotNumber,
		VehicleID:       b.VehicleID,
		LicensePlate:    b.LicensePlate,
		BookingStart:    b.BookingStart,
		BookingEnd:      b.BookingEnd,
		BookingType:     b.BookingType,
		Status:          b.Status,
		TotalPriceCents: b.TotalPriceCents,
		TotalPrice:      service.Rupees(b.TotalPriceCents),
		EntryTime:       b.EntryTime,
		CreatedAt:       b.CreatedAt,
	}
}

func FromBookings(bs []model.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bs))
	for i := range bs {
		out = append(out, FromBooking(&bs[i]))
	}
	return out
}

type PassResponse struct {
	ID         uint64    `json:"id"`
	PlanType   string    `json:"plan_type"`
	ZoneID     *uint64   `json:"zone_id,omitempty"`
	ZoneName   string    `json:"zone_name,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	PriceCents int64     `json:"price_cents"`
	Price      string    `json:"price"`
	Status     string    `json:"status"`
	QRCode     string    `json:"qr_code"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromPass(p *model.Pass) PassResponse {
	return PassResponse{
		ID:         p.ID,
		PlanType:   p.PassType,
		ZoneID:     p.ZoneID,
		ZoneName:   p.ZoneName,
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		PriceCents: p.PriceCents,
		Price:      service.Rupees(p.PriceCents),
		Status:     p.Status,
		QRCode:     p.QRCode,
		CreatedAt:  p.CreatedAt,
	}
}

func FromPasses(ps []model.Pass) []PassResponse {
	out := make([]PassResponse, 0, len(ps))
	for i := range ps {
		out = append(out, FromPass(&ps[i]))
	}
	return out
}

// CancelResponse carries the cancelled item under Booking or Pass.
type CancelResponse struct {
	Booking     *BookingResponse     `json:"booking,omitempty"`
	Pass        *PassResponse        `json:"subscription,omitempty"`
	RefundCents int64                `json:"refund_amount_cents"`
	Refund      string               `json:"refund_amount"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

func fromCancel(r *service.CancelResult) CancelResponse {
	out := CancelResponse{RefundCents: r.RefundCents, Refund: service.Rupees(r.RefundCents)}
	if r.Transaction != nil {
		t := FromTransaction(r.Transaction)
		out.Transaction = &t
	}
	return out
}

func FromBookingCancel(b *model.Booking, r *service.CancelResult) CancelResponse {
	out := fromCancel(r)
	br := FromBooking(b)
	out.Booking = &br
	return out
}

func FromPassCancel(p *model.Pass, r *service.CancelResult) CancelResponse {
	out := fromCancel(r)
	pr := FromPass(p)
	out.Pass = &pr
	return out
}

type AvailabilityResponse struct {
	ZoneID         uint64 `json:"zone_id"`
	ZoneName       string `json:"zone_name"`
	AvailableSlots int    `json:"available_slots"`
	IsAvailable    bool   `json:"is_available"`
	EstimatedCents int64  `json:"estimated_price_cents"`
	Estimated      string `json:"estimated_price"`
}

func FromAvailability(a *service.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ZoneID:         a.Zone.ID,
		ZoneName:       a.Zone.ZoneName,
		AvailableSlots: a.AvailableSlots,
		IsAvailable:    a.IsAvailable,
		EstimatedCents: a.EstimatedCents,
		Estimated:      service.Rupees(a.EstimatedCents),
	}
}

type ChatReplyResponse struct {
	SessionID    string    `json:"session_id"`
	MessageID    uint64    `json:"message_id"`
	Response     string    `json:"response"`
	Intent       string    `json:"intent"`
	Confidence   float64   `json:"confidence"`
	Language     string    `json:"language"`
	QuickReplies []string  `json:"quick_replies"`
	Timestamp    time.Time `json:"timestamp"`
}

func FromChatResult(r *service.ChatResult) ChatReplyResponse {
	qr := r.Reply.QuickReplies
	if qr == nil {
		qr = []string{}
	}
	return ChatReplyResponse{
		SessionID:    r.SessionID,
		MessageID:    r.Message.ID,
		Response:     r.Reply.Response,
		Intent:       r.Reply.Intent,
		Confidence:   round2(r.Reply.Confidence),
		Language:     r.Reply.Language,
		QuickReplies: qr,
		Timestamp:    r.Message.CreatedAt,
	}
}

type ChatSessionResponse struct {
	SessionID          string     `json:"session_id"`
	Language           string     `json:"language"`
	MessageCount       int        `json:"message_count"`
	Escalated          bool       `json:"escalated"`
	SatisfactionRating *int       `json:"satisfaction_rating,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
}

type ChatMessageResponse struct {
	ID         uint64    `json:"id"`
	Message    string    `json:"message"`
	Response   string    `json:"response"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Language   string    `json:"language"`
	Timestamp  time.Time `json:"timestamp"`
}

type ChatHistoryResponse struct {
	Session  ChatSessionResponse   `json:"session"`
	Messages []ChatMessageResponse `json:"messages"`
}

func FromChatHistory(s *model.ChatSession, msgs []model.ChatMessage) ChatHistoryResponse {
	out := ChatHistoryResponse{
		Session: ChatSessionResponse{
			SessionID:          s.ID,
			Language:           s.Language,
			MessageCount:       s.MessageCount,
			Escalated:          s.Escalated,
			SatisfactionRating: s.SatisfactionRating,
			StartedAt:          s.StartedAt,
			EndedAt:            s.EndedAt,
		},
		Messages: make([]ChatMessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, ChatMessageResponse{
			ID:         m.ID,
			Message:    m.Message,
			Response:   m.Response,
			Intent:     m.Intent,
			Confidence: round2(m.Confidence),
			Language:   m.Language,
			Timestamp:  m.CreatedAt,
		})
	}
	return out
}

type ChatStatsResponse struct {
	TotalSessions   int            `json:"total_sessions"`
	ActiveSessions  int            `json:"active_sessions"`
	EscalatedCount  int            `json:"escalated_sessions"`
	TotalMessages   int            `json:"total_messages"`
	AverageRating   float64        `json:"average_rating"`
	IntentBreakdown map[string]int `json:"intent_breakdown"`
}

func FromChatStats(s model.ChatStats) ChatStatsResponse {
	ib := s.IntentBreakdown
	if ib == nil {
		ib = map[string]int{}
	}
	return ChatStatsResponse{
		TotalSessions:   s.TotalSessions,
		ActiveSessions:  s.ActiveSessions,
		EscalatedCount:  s.EscalatedCount,
		TotalMessages:   s.TotalMessages,
		AverageRating:   round2(s.AverageRating),
		IntentBreakdown: ib,
	}
}
