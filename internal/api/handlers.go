package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quorumhq/boardroom/internal/database"
	"github.com/quorumhq/boardroom/internal/server"
	"github.com/quorumhq/boardroom/internal/types"
)

type CreateAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type CreateCompanyRequest struct {
	Name string `json:"name"`
}

type AddMemberRequest struct {
	CompanyId string           `json:"company_id"`
	AccountId int              `json:"account_id"`
	Role      types.MemberRole `json:"role"`
}

type CreateMeetingRequest struct {
	CompanyId   string    `json:"company_id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type CreateDecisionRequest struct {
	MeetingId string `json:"meeting_id"`
	Title     string `json:"title"`
}

func (s *BoardroomApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *BoardroomApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// createAccount provisions an account record for a subject managed by
// the external identity provider. Credentials never live here.
func (s *BoardroomApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, userToWire(newUser))
}

func (s *BoardroomApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userToWire(user))
}

// createCompany creates a company and makes the caller its owner.
func (s *BoardroomApp) createCompany(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	company, err := s.db.CreateCompany(database.CreateCompanyParams{
		ExternalId: sid,
		Name:       req.Name,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.CreateMembership(database.CreateMembershipParams{
		CompanyId: company.Id,
		AccountId: userId,
		Role:      types.RoleOwner,
	}); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, companyToWire(company))
}

func (s *BoardroomApp) listCompanies(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbCompanies, err := s.db.ListCompaniesForAccount(userId)
	if err != nil {
		s.log.Println("list companies:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	companies := make([]types.Company, 0, len(dbCompanies))
	for _, c := range dbCompanies {
		companies = append(companies, companyToWire(c))
	}

	s.writeJson(w, http.StatusOK, companies)
}

// addMember adds an account to a company. Only privileged members may
// manage the member list.
func (s *BoardroomApp) addMember(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.CompanyId == "" || req.AccountId == 0 || !req.Role.Valid() {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	company, errResp := s.lookupCompany(req.CompanyId)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, company.Id, true); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	membership, err := s.db.CreateMembership(database.CreateMembershipParams{
		CompanyId: company.Id,
		AccountId: req.AccountId,
		Role:      req.Role,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, membershipToWire(membership))
}

func (s *BoardroomApp) listMembers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	company, errResp := s.lookupCompany(r.URL.Query().Get("company_id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, company.Id, false); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMembers, err := s.db.ListMemberships(company.Id)
	if err != nil {
		s.log.Println("list memberships:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	members := make([]types.Membership, 0, len(dbMembers))
	for _, m := range dbMembers {
		members = append(members, membershipToWire(m))
	}

	s.writeJson(w, http.StatusOK, members)
}

func (s *BoardroomApp) createMeeting(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.CompanyId == "" || req.Title == "" || req.ScheduledAt.IsZero() {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	company, errResp := s.lookupCompany(req.CompanyId)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, company.Id, true); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	meeting, err := s.db.CreateMeeting(database.CreateMeetingParams{
		ExternalId:  sid,
		CompanyId:   company.Id,
		Title:       req.Title,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, meetingToWire(meeting))
}

func (s *BoardroomApp) listMeetings(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	company, errResp := s.lookupCompany(r.URL.Query().Get("company_id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, company.Id, false); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMeetings, err := s.db.ListMeetings(company.Id)
	if err != nil {
		s.log.Println("list meetings:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	meetings := make([]types.Meeting, 0, len(dbMeetings))
	for _, m := range dbMeetings {
		meetings = append(meetings, meetingToWire(m))
	}

	s.writeJson(w, http.StatusOK, meetings)
}

func (s *BoardroomApp) getMeeting(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	meeting, errResp := s.lookupMeeting(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, meeting.CompanyId, false); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, meetingToWire(meeting))
}

func (s *BoardroomApp) createDecision(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MeetingId == "" || req.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	meeting, errResp := s.lookupMeeting(req.MeetingId)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, meeting.CompanyId, true); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	decision, err := s.db.CreateDecision(database.CreateDecisionParams{
		ExternalId: sid,
		MeetingId:  meeting.Id,
		Title:      req.Title,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, decisionToWire(decision))
}

func (s *BoardroomApp) listDecisions(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	meeting, errResp := s.lookupMeeting(r.URL.Query().Get("meeting_id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, meeting.CompanyId, false); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbDecisions, err := s.db.ListDecisions(meeting.Id)
	if err != nil {
		s.log.Println("list decisions:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	decisions := make([]types.Decision, 0, len(dbDecisions))
	for _, d := range dbDecisions {
		decisions = append(decisions, decisionToWire(d))
	}

	s.writeJson(w, http.StatusOK, decisions)
}

func (s *BoardroomApp) getTally(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	decisionId := r.URL.Query().Get("decision_id")
	if decisionId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dm, err := s.db.GetDecisionByExternalId(decisionId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, dm.Meeting.CompanyId, false); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	counts, err := s.db.CountVotesByValue(dm.Decision.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"decision_id": dm.Decision.ExternalId,
		"tally":       types.NewTally(counts),
	})
}

func (s *BoardroomApp) listAttendance(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	meeting, errResp := s.lookupMeeting(r.URL.Query().Get("meeting_id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requireRole(userId, meeting.CompanyId, false); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRecords, err := s.db.ListAttendance(meeting.Id)
	if err != nil {
		s.log.Println("list attendance:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	records := make([]types.Attendance, 0, len(dbRecords))
	for _, a := range dbRecords {
		records = append(records, attendanceToWire(a))
	}

	s.writeJson(w, http.StatusOK, records)
}

func (s *BoardroomApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	sessionId, _ := SessionId(r.Context())

	user, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.log.Printf("authenticated connection for user %q (session %q)", user.Username, sessionId)

	client := server.NewClient(userToWire(user), sessionId, conn, s.ms, s.log, s.stats)

	s.ms.RegisterClient(client)
	go client.Write()
	go client.Read()
}

func (s *BoardroomApp) lookupCompany(externalId string) (database.Company, *ApiError) {
	if externalId == "" {
		return database.Company{}, NewBadRequestError()
	}

	company, err := s.db.GetCompanyByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Company{}, NewNotFoundError()
		}
		return database.Company{}, NewInternalServerError(err)
	}

	return company, nil
}

func (s *BoardroomApp) lookupMeeting(externalId string) (database.Meeting, *ApiError) {
	if externalId == "" {
		return database.Meeting{}, NewBadRequestError()
	}

	meeting, err := s.db.GetMeetingByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Meeting{}, NewNotFoundError()
		}
		return database.Meeting{}, NewInternalServerError(err)
	}

	return meeting, nil
}

// requireRole checks the caller's membership in the company, and when
// manage is set, that the role is privileged.
func (s *BoardroomApp) requireRole(accountId, companyId int, manage bool) *ApiError {
	membership, err := s.db.GetMembership(accountId, companyId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewForbiddenError()
		}
		return NewInternalServerError(err)
	}

	if manage && !membership.Role.CanManageMeeting() {
		return NewForbiddenError()
	}

	return nil
}

func userToWire(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func companyToWire(c database.Company) types.Company {
	return types.Company{
		Id:         c.Id,
		ExternalId: c.ExternalId,
		Name:       c.Name,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func membershipToWire(m database.Membership) types.Membership {
	return types.Membership{
		Id:        m.Id,
		CompanyId: m.CompanyId,
		UserId:    m.AccountId,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
	}
}

func meetingToWire(m database.Meeting) types.Meeting {
	return types.Meeting{
		Id:          m.Id,
		ExternalId:  m.ExternalId,
		CompanyId:   m.CompanyId,
		Title:       m.Title,
		Status:      m.Status,
		ScheduledAt: m.ScheduledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func decisionToWire(d database.Decision) types.Decision {
	return types.Decision{
		Id:         d.Id,
		ExternalId: d.ExternalId,
		MeetingId:  d.MeetingId,
		Title:      d.Title,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func attendanceToWire(a database.Attendance) types.Attendance {
	return types.Attendance{
		Id:        a.Id,
		MeetingId: a.MeetingId,
		UserId:    a.AccountId,
		Present:   a.Present,
		UpdatedAt: a.UpdatedAt,
	}
}
