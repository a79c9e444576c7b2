// Package dbtest opens throwaway in-memory sqlite databases with the campus
// tables for repository tests. Columns mirror the goose migrations with sqlite types.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/unicampus/campus-backend/pkg/db"
)

const (
	Users = `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		student_number TEXT,
		faculty TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'student',
		vendor_id TEXT,
		points_balance INTEGER NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
		checkout_pin_hash TEXT,
		identity_uid TEXT UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`

	Vendors = `CREATE TABLE vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		location TEXT,
		logo_url TEXT,
		is_open BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`

	StoreCategories = `CREATE TABLE store_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`

	Products = `CREATE TABLE products (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		category_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		price NUMERIC NOT NULL,
		discount_percentage NUMERIC NOT NULL DEFAULT 0,
		image_url TEXT,
		is_available BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`

	CampusOrders = `CREATE TABLE campus_orders (
		id TEXT PRIMARY KEY,
		checkout_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		subtotal NUMERIC NOT NULL,
		service_fee NUMERIC NOT NULL,
		total_price NUMERIC NOT NULL,
		payment_method TEXT NOT NULL,
		qr_code TEXT NOT NULL UNIQUE,
		notes TEXT,
		pickup_deadline DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'placed',
		cancel_reason TEXT,
		accepted_at DATETIME,
		ready_at DATETIME,
		completed_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`

	CampusOrderItems = `CREATE TABLE campus_order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL,
		discount_percentage NUMERIC NOT NULL DEFAULT 0,
		subtotal NUMERIC NOT NULL
	)`

	Clubs = `CREATE TABLE clubs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT,
		logo_url TEXT,
		max_members INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME
	)`

	ClubRoles = `CREATE TABLE club_roles (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		name TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		UNIQUE (club_id, name)
	)`

	ClubMemberships = `CREATE TABLE club_memberships (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role_id TEXT,
		joined_at DATETIME,
		UNIQUE (club_id, user_id)
	)`

	Engagement = `CREATE TABLE engagement (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		club_id TEXT,
		activity TEXT NOT NULL,
		points INTEGER NOT NULL,
		recorded_by TEXT NOT NULL,
		created_at DATETIME
	)`

	ActivityPointsHistory = `CREATE TABLE activity_points_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL,
		reference_type TEXT,
		reference_id TEXT,
		balance_after INTEGER NOT NULL,
		created_at DATETIME
	)`

	Vouchers = `CREATE TABLE vouchers (
		id TEXT PRIMARY KEY,
		vendor_id TEXT,
		title TEXT NOT NULL,
		description TEXT,
		points_cost INTEGER NOT NULL,
		remaining INTEGER CHECK (remaining IS NULL OR remaining >= 0),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		expires_at DATETIME,
		created_at DATETIME
	)`

	VoucherRedemptions = `CREATE TABLE voucher_redemptions (
		id TEXT PRIMARY KEY,
		voucher_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		points_spent INTEGER NOT NULL,
		created_at DATETIME
	)`

	Notifications = `CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		vendor_id TEXT,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`

	OutboxEvents = `CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`
)

// Open returns a fresh shared-cache in-memory database with the given tables created.
func Open(t *testing.T, tables ...string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	for _, ddl := range tables {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Client wraps conn so services can run WithTx against it.
func Client(conn *gorm.DB) *db.Client {
	return db.Wrap(conn)
}
