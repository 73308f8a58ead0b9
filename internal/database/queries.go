package database

import (
	"fmt"
	"time"

	"github.com/quorumhq/boardroom/internal/types"
)

const (
	meetingColumns = "id, external_id, company_id, title, status, scheduled_at, created_at, updated_at"
	voteColumns    = "id, decision_id, voter_id, value, created_at, updated_at"
)

func (db *PgBoardRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgBoardRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgBoardRepository) CreateCompany(params CreateCompanyParams) (Company, error) {
	res := db.conn.QueryRow(
		"INSERT INTO companies (external_id, name, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, external_id, name, created_at, updated_at",
		params.ExternalId,
		params.Name,
		time.Now().UTC(),
	)

	var c Company
	err := res.Scan(
		&c.Id,
		&c.ExternalId,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	return c, err
}

func (db *PgBoardRepository) GetCompanyByExternalId(externalId string) (Company, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, created_at, updated_at FROM companies "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var c Company
	err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	return c, err
}

func (db *PgBoardRepository) ListCompaniesForAccount(accountId int) ([]Company, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.name, c.created_at, c.updated_at FROM memberships m "+
			"JOIN companies c ON c.id = m.company_id WHERE m.account_id = $1 ORDER BY c.id",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies = make([]Company, 0)
	for rows.Next() {
		var c Company
		if err = rows.Scan(&c.Id, &c.ExternalId, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			break
		}

		companies = append(companies, c)
	}

	return companies, err
}

func (db *PgBoardRepository) CreateMembership(params CreateMembershipParams) (Membership, error) {
	res := db.conn.QueryRow(
		"INSERT INTO memberships (company_id, account_id, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, company_id, account_id, role, created_at, updated_at",
		params.CompanyId,
		params.AccountId,
		string(params.Role),
		time.Now().UTC(),
	)

	var m Membership
	err := res.Scan(
		&m.Id,
		&m.CompanyId,
		&m.AccountId,
		&m.Role,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgBoardRepository) GetMembership(accountId, companyId int) (Membership, error) {
	row := db.conn.QueryRow(
		"SELECT id, company_id, account_id, role, created_at, updated_at FROM memberships "+
			"WHERE account_id = $1 AND company_id = $2 LIMIT 1",
		accountId,
		companyId,
	)

	var m Membership
	err := row.Scan(
		&m.Id,
		&m.CompanyId,
		&m.AccountId,
		&m.Role,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgBoardRepository) ListMemberships(companyId int) ([]Membership, error) {
	rows, err := db.conn.Query(
		"SELECT id, company_id, account_id, role, created_at, updated_at FROM memberships "+
			"WHERE company_id = $1 ORDER BY id",
		companyId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]Membership, 0)
	for rows.Next() {
		var m Membership
		if err = rows.Scan(&m.Id, &m.CompanyId, &m.AccountId, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			break
		}

		members = append(members, m)
	}

	return members, err
}

func (db *PgBoardRepository) CreateMeeting(params CreateMeetingParams) (Meeting, error) {
	res := db.conn.QueryRow(
		"INSERT INTO meetings (external_id, company_id, title, status, scheduled_at, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING "+meetingColumns,
		params.ExternalId,
		params.CompanyId,
		params.Title,
		string(types.StatusScheduled),
		params.ScheduledAt,
		time.Now().UTC(),
	)

	return scanMeeting(res)
}

func (db *PgBoardRepository) GetMeetingByExternalId(externalId string) (Meeting, error) {
	row := db.conn.QueryRow(
		"SELECT "+meetingColumns+" FROM meetings WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	return scanMeeting(row)
}

func (db *PgBoardRepository) ListMeetings(companyId int) ([]Meeting, error) {
	rows, err := db.conn.Query(
		"SELECT "+meetingColumns+" FROM meetings WHERE company_id = $1 ORDER BY scheduled_at",
		companyId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings = make([]Meeting, 0)
	for rows.Next() {
		var m Meeting
		if err = rows.Scan(&m.Id, &m.ExternalId, &m.CompanyId, &m.Title, &m.Status,
			&m.ScheduledAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			break
		}

		meetings = append(meetings, m)
	}

	return meetings, err
}

func (db *PgBoardRepository) UpdateMeetingStatus(meetingId int, status types.MeetingStatus) (Meeting, error) {
	res := db.conn.QueryRow(
		"UPDATE meetings SET status = $2, updated_at = $3 WHERE id = $1 RETURNING "+meetingColumns,
		meetingId,
		string(status),
		time.Now().UTC(),
	)

	return scanMeeting(res)
}

func (db *PgBoardRepository) CreateDecision(params CreateDecisionParams) (Decision, error) {
	res := db.conn.QueryRow(
		"INSERT INTO decisions (external_id, meeting_id, title, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, external_id, meeting_id, title, created_at, updated_at",
		params.ExternalId,
		params.MeetingId,
		params.Title,
		time.Now().UTC(),
	)

	var d Decision
	err := res.Scan(
		&d.Id,
		&d.ExternalId,
		&d.MeetingId,
		&d.Title,
		&d.CreatedAt,
		&d.UpdatedAt,
	)

	return d, err
}

func (db *PgBoardRepository) GetDecisionByExternalId(externalId string) (DecisionWithMeeting, error) {
	row := db.conn.QueryRow(
		"SELECT d.id, d.external_id, d.meeting_id, d.title, d.created_at, d.updated_at, "+
			"m.id, m.external_id, m.company_id, m.title, m.status, m.scheduled_at, m.created_at, m.updated_at "+
			"FROM decisions d JOIN meetings m ON m.id = d.meeting_id WHERE d.external_id = $1 LIMIT 1",
		externalId,
	)

	var dm DecisionWithMeeting
	err := row.Scan(
		&dm.Id,
		&dm.ExternalId,
		&dm.MeetingId,
		&dm.Title,
		&dm.CreatedAt,
		&dm.UpdatedAt,
		&dm.Meeting.Id,
		&dm.Meeting.ExternalId,
		&dm.Meeting.CompanyId,
		&dm.Meeting.Title,
		&dm.Meeting.Status,
		&dm.Meeting.ScheduledAt,
		&dm.Meeting.CreatedAt,
		&dm.Meeting.UpdatedAt,
	)

	return dm, err
}

func (db *PgBoardRepository) ListDecisions(meetingId int) ([]Decision, error) {
	rows, err := db.conn.Query(
		"SELECT id, external_id, meeting_id, title, created_at, updated_at FROM decisions "+
			"WHERE meeting_id = $1 ORDER BY id",
		meetingId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions = make([]Decision, 0)
	for rows.Next() {
		var d Decision
		if err = rows.Scan(&d.Id, &d.ExternalId, &d.MeetingId, &d.Title, &d.CreatedAt, &d.UpdatedAt); err != nil {
			break
		}

		decisions = append(decisions, d)
	}

	return decisions, err
}

// UpsertVote stores the voter's latest choice for a decision. The unique
// (decision_id, voter_id) index makes the upsert atomic, so two
// concurrent casts by the same voter settle to a single row.
func (db *PgBoardRepository) UpsertVote(params UpsertVoteParams) (Vote, error) {
	res := db.conn.QueryRow(
		"INSERT INTO votes (decision_id, voter_id, value, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) "+
			"ON CONFLICT (decision_id, voter_id) DO UPDATE SET value = $3, updated_at = $4 "+
			"RETURNING "+voteColumns,
		params.DecisionId,
		params.VoterId,
		string(params.Value),
		time.Now().UTC(),
	)

	var v Vote
	err := res.Scan(
		&v.Id,
		&v.DecisionId,
		&v.VoterId,
		&v.Value,
		&v.CreatedAt,
		&v.UpdatedAt,
	)

	return v, err
}

func (db *PgBoardRepository) CountVotesByValue(decisionId int) (map[types.VoteValue]int, error) {
	rows, err := db.conn.Query(
		"SELECT value, COUNT(*) FROM votes WHERE decision_id = $1 GROUP BY value",
		decisionId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.VoteValue]int)
	for rows.Next() {
		var (
			value string
			count int
		)
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}

		counts[types.VoteValue(value)] = count
	}

	return counts, rows.Err()
}

func (db *PgBoardRepository) UpsertAttendance(params UpsertAttendanceParams) (Attendance, error) {
	res := db.conn.QueryRow(
		"INSERT INTO attendance (meeting_id, account_id, present, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) "+
			"ON CONFLICT (meeting_id, account_id) DO UPDATE SET present = $3, updated_at = $4 "+
			"RETURNING id, meeting_id, account_id, present, created_at, updated_at",
		params.MeetingId,
		params.AccountId,
		params.Present,
		time.Now().UTC(),
	)

	var a Attendance
	err := res.Scan(
		&a.Id,
		&a.MeetingId,
		&a.AccountId,
		&a.Present,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgBoardRepository) ListAttendance(meetingId int) ([]Attendance, error) {
	rows, err := db.conn.Query(
		"SELECT id, meeting_id, account_id, present, created_at, updated_at FROM attendance "+
			"WHERE meeting_id = $1 ORDER BY id",
		meetingId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records = make([]Attendance, 0)
	for rows.Next() {
		var a Attendance
		if err = rows.Scan(&a.Id, &a.MeetingId, &a.AccountId, &a.Present, &a.CreatedAt, &a.UpdatedAt); err != nil {
			break
		}

		records = append(records, a)
	}

	return records, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row scanner) (Meeting, error) {
	var m Meeting
	err := row.Scan(
		&m.Id,
		&m.ExternalId,
		&m.CompanyId,
		&m.Title,
		&m.Status,
		&m.ScheduledAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}
