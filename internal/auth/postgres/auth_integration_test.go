// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trackrank/trackrank/internal/access"
	"github.com/trackrank/trackrank/internal/auth"
	authpg "github.com/trackrank/trackrank/internal/auth/postgres"
	"github.com/trackrank/trackrank/internal/store"
)

// setupDatabase starts a PostgreSQL container and migrates the schema.
func setupDatabase() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("trackrank_test"),
		tcpostgres.WithUsername("trackrank"),
		tcpostgres.WithPassword("trackrank"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup, nil
}

var _ = Describe("Auth service on PostgreSQL", Ordered, func() {
	var (
		ctx     context.Context
		pool    *pgxpool.Pool
		cleanup func()
		svc     *auth.Service
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		pool, cleanup, err = setupDatabase()
		Expect(err).NotTo(HaveOccurred())

		svc, err = auth.NewService(
			authpg.NewAccountRepository(pool),
			authpg.NewSessionRepository(pool),
			auth.NewArgon2idHasher(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		cleanup()
	})

	AfterEach(func() {
		_, err := pool.Exec(ctx, `DELETE FROM users`)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Register", func() {
		It("persists the account with a hashed password", func() {
			account, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())
			Expect(account.PasswordHash).To(HavePrefix("$argon2id$"))

			stored, err := authpg.NewAccountRepository(pool).GetByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Username).To(Equal("alice"))
			Expect(stored.AccessLevel).To(Equal(access.LevelUser))
		})

		It("rejects a duplicate username regardless of case", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Register(ctx, "ALICE", "anotherpass", access.LevelUser)
			Expect(err).To(MatchError(auth.ErrDuplicateUsername))
		})
	})

	Describe("Login and session validation", func() {
		It("runs the full login, validate, logout cycle", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelEditor)
			Expect(err).NotTo(HaveOccurred())

			session, token, err := svc.Login(ctx, "alice", "sup3rs3cret", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Username).To(Equal("alice"))
			Expect(token).NotTo(BeEmpty())

			account, validated, err := svc.ValidateSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(account.Username).To(Equal("alice"))
			Expect(account.AccessLevel).To(Equal(access.LevelEditor))
			Expect(validated.ID).To(Equal(session.ID))

			Expect(svc.RevokeSession(ctx, token)).To(Succeed())

			_, _, err = svc.ValidateSession(ctx, token)
			Expect(err).To(HaveOccurred())
		})

		It("takes a fresh account from registration to an authorization check", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = svc.Login(ctx, "alice", "wr0ngpass", false)
			Expect(err).To(MatchError(ContainSubstring("invalid username or password")))

			session, token, err := svc.Login(ctx, "alice", "sup3rs3cret", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ExpiresAt.Sub(session.CreatedAt)).To(Equal(auth.ShortSessionTTL))

			account, _, err := svc.ValidateSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Authorize(account.AccessLevel, access.LevelUser)).To(Succeed())
			Expect(access.Authorize(account.AccessLevel, access.LevelEditor)).
				To(MatchError(access.ErrUnauthorized))
		})

		It("rejects a wrong password without leaking which field was wrong", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, _, errWrongPass := svc.Login(ctx, "alice", "wrong", false)
			_, _, errNoUser := svc.Login(ctx, "nobody", "wrong", false)
			Expect(errWrongPass).To(HaveOccurred())
			Expect(errNoUser).To(HaveOccurred())
			Expect(errWrongPass.Error()).To(Equal(errNoUser.Error()))
		})

		It("keeps independent sessions independent", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, token1, err := svc.Login(ctx, "alice", "sup3rs3cret", false)
			Expect(err).NotTo(HaveOccurred())
			_, token2, err := svc.Login(ctx, "alice", "sup3rs3cret", true)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.RevokeSession(ctx, token1)).To(Succeed())

			_, _, err = svc.ValidateSession(ctx, token1)
			Expect(err).To(HaveOccurred())
			_, _, err = svc.ValidateSession(ctx, token2)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("DeleteAccount", func() {
		It("cascades to the account's sessions", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, token, err := svc.Login(ctx, "alice", "sup3rs3cret", true)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.DeleteAccount(ctx, "alice")).To(Succeed())

			// The session row is gone, not just orphaned.
			var count int
			err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE username = $1`, "alice").Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			_, _, err = svc.ValidateSession(ctx, token)
			Expect(err).To(MatchError(ContainSubstring("invalid session token")))
		})
	})

	Describe("ChangePassword", func() {
		It("revokes every session and requires the new password", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, token, err := svc.Login(ctx, "alice", "sup3rs3cret", false)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.ChangePassword(ctx, "alice", "sup3rs3cret", "n3wp4ssword")).To(Succeed())

			_, _, err = svc.ValidateSession(ctx, token)
			Expect(err).To(HaveOccurred())

			_, _, err = svc.Login(ctx, "alice", "sup3rs3cret", false)
			Expect(err).To(HaveOccurred())

			_, _, err = svc.Login(ctx, "alice", "n3wp4ssword", false)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("PruneExpired", func() {
		It("deletes only sessions past their expiry", func() {
			_, err := svc.Register(ctx, "alice", "sup3rs3cret", access.LevelUser)
			Expect(err).NotTo(HaveOccurred())

			_, liveToken, err := svc.Login(ctx, "alice", "sup3rs3cret", false)
			Expect(err).NotTo(HaveOccurred())

			// Insert an already-expired session directly.
			expired, err := auth.NewSession("alice", auth.HashSessionToken("expiredtoken"), false, time.Minute)
			Expect(err).NotTo(HaveOccurred())
			_, err = pool.Exec(ctx, `
				INSERT INTO sessions (id, username, token_hash, stay_logged_in, created_at, expires_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, expired.ID.String(), expired.Username, expired.TokenHash, expired.StayLoggedIn,
				time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())

			count, err := svc.PruneExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			_, _, err = svc.ValidateSession(ctx, liveToken)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
