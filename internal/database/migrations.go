package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order at startup.  Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(120) NOT NULL,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS listings (
		id                     BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id               BIGINT UNSIGNED NOT NULL,
		title                  VARCHAR(200) NOT NULL,
		description            TEXT NOT NULL,
		hourly_price_cents     BIGINT NOT NULL DEFAULT 0,
		daily_price_cents      BIGINT NOT NULL DEFAULT 0,
		security_deposit_cents BIGINT NOT NULL DEFAULT 0,
		latitude               DOUBLE NULL,
		longitude              DOUBLE NULL,
		is_available           BOOLEAN NOT NULL DEFAULT TRUE,
		is_approved            BOOLEAN NOT NULL DEFAULT FALSE,
		created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_listings_browse (is_available, is_approved),
		CONSTRAINT fk_listing_owner FOREIGN KEY (owner_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS listing_images (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		listing_id BIGINT UNSIGNED NOT NULL,
		url        VARCHAR(1024) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_image_listing FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS rent_requests (
		id                   BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		listing_id           BIGINT UNSIGNED NOT NULL,
		borrower_id          BIGINT UNSIGNED NOT NULL,
		lender_id            BIGINT UNSIGNED NOT NULL,
		pickup_time          DATETIME NOT NULL,
		drop_off_time        DATETIME NOT NULL,
		duration_unit        ENUM('Hour','Day','Week') NOT NULL,
		duration_value       INT NOT NULL,
		price_cents          BIGINT NOT NULL,
		status               VARCHAR(16) NOT NULL DEFAULT 'Requested',
		actual_pickup_time   DATETIME NULL,
		actual_drop_off_time DATETIME NULL,
		cancellation_reason  VARCHAR(500) NULL,
		created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_rent_listing_window (listing_id, status, pickup_time, drop_off_time),
		KEY idx_rent_borrower (borrower_id),
		KEY idx_rent_lender (lender_id),
		CONSTRAINT fk_rent_listing FOREIGN KEY (listing_id) REFERENCES listings(id),
		CONSTRAINT fk_rent_borrower FOREIGN KEY (borrower_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                        BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		rent_request_id           BIGINT UNSIGNED NOT NULL UNIQUE,
		listing_id                BIGINT UNSIGNED NOT NULL,
		borrower_id               BIGINT UNSIGNED NOT NULL,
		lender_id                 BIGINT UNSIGNED NOT NULL,
		start_time                DATETIME NOT NULL,
		end_time                  DATETIME NOT NULL,
		total_fee_cents           BIGINT NOT NULL,
		platform_commission_cents BIGINT NOT NULL,
		deposit_cents             BIGINT NOT NULL,
		charge_id                 VARCHAR(255) NULL,
		status                    VARCHAR(16) NOT NULL DEFAULT 'Pending',
		created_at                DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at                DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_tx_rent FOREIGN KEY (rent_request_id) REFERENCES rent_requests(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		transaction_id BIGINT UNSIGNED NOT NULL,
		reviewer_id    BIGINT UNSIGNED NOT NULL,
		reviewee_id    BIGINT UNSIGNED NOT NULL,
		rating         TINYINT NOT NULL,
		comment        TEXT NULL,
		approved       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_review_author (transaction_id, reviewer_id),
		KEY idx_review_reviewee (reviewee_id, approved),
		CONSTRAINT fk_review_tx FOREIGN KEY (transaction_id) REFERENCES transactions(id)
	) ENGINE=InnoDB`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
