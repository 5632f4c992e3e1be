package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"ticketing-engine/internal/config"
	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
)

const mysqlDuplicateEntry = 1062

var _ Store = (*MySQLStore)(nil)

type MySQLStore struct {
	root *bun.DB
	db   bun.IDB
	log  *logger.Logger
}

// OpenMySQL opens a bun handle on MySQL and checks connectivity.
func OpenMySQL(cfg config.DatabaseConfig) (*bun.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return bun.NewDB(sqldb, mysqldialect.New()), nil
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	db, err := OpenMySQL(cfg)
	if err != nil {
		log.Error("DATABASE", "Failed to connect to MySQL: "+err.Error())
		return nil, err
	}

	if err := CreateSchema(context.Background(), db, log); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return &MySQLStore{root: db, db: db, log: log}, nil
}

// CreateSchema creates every table the engine uses when it does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB, log *logger.Logger) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.AttendanceLog)(nil),
		(*models.Payment)(nil),
	}

	for _, model := range tables {
		name := fmt.Sprintf("%T", model)
		q := db.NewCreateTable().Model(model).IfNotExists()
		log.LogDatabase("MIGRATE", "mysql", fmt.Sprintf("Creating %s table if not exists", name))
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", name, err)
		}
	}

	indexes := []*bun.CreateIndexQuery{
		db.NewCreateIndex().Model((*models.Ticket)(nil)).Index("idx_tickets_event").Column("event_id"),
		db.NewCreateIndex().Model((*models.AttendanceLog)(nil)).Index("idx_attendance_ticket").Column("ticket_id", "start_time"),
		db.NewCreateIndex().Model((*models.AttendanceLog)(nil)).Index("idx_attendance_event").Column("event_id", "start_time"),
		db.NewCreateIndex().Model((*models.Payment)(nil)).Index("idx_payments_event").Column("event_id"),
	}
	for _, q := range indexes {
		if _, err := q.Exec(ctx); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.LogDatabase("SUCCESS", "mysql", "Tables ready")
	return nil
}

func isDuplicateIndex(err error) bool {
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == 1061
}

func (s *MySQLStore) notFound(what string, id interface{}, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("%s %v not found", what, id))
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	s.log.Error("DATABASE", fmt.Sprintf("Failed to get %s %v: %s", what, id, err.Error()))
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func (s *MySQLStore) insertErr(what string, err error) error {
	var me *mysqldriver.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	s.log.Error("DATABASE", fmt.Sprintf("Failed to save %s: %s", what, err.Error()))
	return fmt.Errorf("failed to save %s: %w", what, err)
}

func (s *MySQLStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if _, inTx := s.db.(bun.Tx); inTx {
		return fn(ctx, s)
	}

	return s.root.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &MySQLStore{root: s.root, db: tx, log: s.log})
	})
}

func (s *MySQLStore) SaveUser(ctx context.Context, user *models.User) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving user %s", user.Email))
	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return s.insertErr("user", err)
	}
	return nil
}

func (s *MySQLStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	if err := s.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, s.notFound("user", id, err)
	}
	return user, nil
}

func (s *MySQLStore) SaveEvent(ctx context.Context, event *models.Event) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving event %q", event.Name))
	if _, err := s.db.NewInsert().Model(event).Exec(ctx); err != nil {
		return s.insertErr("event", err)
	}
	return nil
}

func (s *MySQLStore) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	event := new(models.Event)
	if err := s.db.NewSelect().Model(event).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, s.notFound("event", id, err)
	}
	return event, nil
}

func (s *MySQLStore) GetEventForUpdate(ctx context.Context, id int64) (*models.Event, error) {
	s.log.LogDatabase("LOCK", "mysql", fmt.Sprintf("Locking event %d", id))
	event := new(models.Event)
	if err := s.db.NewSelect().Model(event).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return nil, s.notFound("event", id, err)
	}
	return event, nil
}

func (s *MySQLStore) UpdateTicketsSold(ctx context.Context, eventID int64, sold int) error {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Event %d tickets_sold=%d", eventID, sold))
	res, err := s.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_sold = ?", sold).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update event %d: %s", eventID, err.Error()))
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireRow(res, "event", eventID)
}

func (s *MySQLStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if _, err := s.db.NewInsert().Model(ticket).Exec(ctx); err != nil {
		return s.insertErr("ticket", err)
	}
	s.log.LogDatabase("SUCCESS", "mysql", fmt.Sprintf("Ticket %d created for event %d", ticket.ID, ticket.EventID))
	return nil
}

func (s *MySQLStore) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	if err := s.db.NewSelect().Model(ticket).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, s.notFound("ticket", id, err)
	}
	return ticket, nil
}

func (s *MySQLStore) GetTicketForUpdate(ctx context.Context, id int64) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	if err := s.db.NewSelect().Model(ticket).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return nil, s.notFound("ticket", id, err)
	}
	return ticket, nil
}

func (s *MySQLStore) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	if err := s.db.NewSelect().Model(ticket).Where("qr_code = ?", qrCode).Scan(ctx); err != nil {
		return nil, s.notFound("ticket with qr code", "", err)
	}
	return ticket, nil
}

func (s *MySQLStore) UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Ticket %d status=%s", id, status))
	res, err := s.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update ticket %d: %s", id, err.Error()))
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return requireRow(res, "ticket", id)
}

func (s *MySQLStore) ListTickets(ctx context.Context, eventID int64) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := s.db.NewSelect().Model(&tickets).Where("event_id = ?", eventID).Order("id ASC").Scan(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list tickets: %s", err.Error()))
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (s *MySQLStore) CreateAttendanceLog(ctx context.Context, log *models.AttendanceLog) error {
	if _, err := s.db.NewInsert().Model(log).Exec(ctx); err != nil {
		return s.insertErr("attendance log", err)
	}
	return nil
}

func (s *MySQLStore) LatestAttendanceLog(ctx context.Context, ticketID int64) (*models.AttendanceLog, error) {
	entry := new(models.AttendanceLog)
	err := s.db.NewSelect().
		Model(entry).
		Where("ticket_id = ?", ticketID).
		Order("start_time DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, s.notFound("attendance for ticket", ticketID, err)
	}
	return entry, nil
}

func (s *MySQLStore) RecentAttendance(ctx context.Context, eventID int64, limit int) ([]*models.AttendanceLog, error) {
	var logs []*models.AttendanceLog
	q := s.db.NewSelect().
		Model(&logs).
		Where("event_id = ?", eventID).
		Order("start_time DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list attendance: %s", err.Error()))
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return logs, nil
}

func (s *MySQLStore) AttendanceStats(ctx context.Context, eventID int64) (*models.AttendanceStats, error) {
	var stats models.AttendanceStats
	err := s.db.NewSelect().
		Model((*models.AttendanceLog)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)", models.ScanValid).
		ColumnExpr("COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)", models.ScanDuplicate).
		Where("event_id = ?", eventID).
		Scan(ctx, &stats.TotalScans, &stats.ValidScans, &stats.DuplicateScans)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to aggregate attendance: %s", err.Error()))
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}
	return &stats, nil
}

func (s *MySQLStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving payment %s", payment.TransactionReference))
	if _, err := s.db.NewInsert().Model(payment).Exec(ctx); err != nil {
		return s.insertErr("payment", err)
	}
	return nil
}

func (s *MySQLStore) ListPayments(ctx context.Context, eventID int64) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := s.db.NewSelect().Model(&payments).Where("event_id = ?", eventID).Order("id ASC").Scan(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list payments: %s", err.Error()))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *MySQLStore) HealthCheck(ctx context.Context) error {
	return s.root.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.root.Close()
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
