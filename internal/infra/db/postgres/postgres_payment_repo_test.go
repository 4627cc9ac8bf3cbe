//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/repository"
)

func newDonePayment(userID string, amount int64) *model.Payment {
	now := time.Now().Truncate(time.Millisecond)
	approved := now
	return &model.Payment{
		ID:            uuid.NewString(),
		OrderID:       model.NewOrderID(now),
		PaymentKey:    "pk_" + uuid.NewString(),
		UserID:        userID,
		OrderName:     "integration order",
		Method:        model.MethodCard,
		Status:        model.PaymentStatusDone,
		TotalAmount:   amount,
		BalanceAmount: amount,
		RequestedAt:   now,
		ApprovedAt:    &approved,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newReadyPayment(userID string, amount int64) *model.Payment {
	now := time.Now().Truncate(time.Millisecond)
	return &model.Payment{
		ID:            uuid.NewString(),
		OrderID:       model.NewOrderID(now),
		UserID:        userID,
		OrderName:     "integration order",
		Method:        model.MethodCard,
		Status:        model.PaymentStatusReady,
		TotalAmount:   amount,
		BalanceAmount: amount,
		RequestedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPaymentRepo(testPool)

	t.Run("should save and find a payment by id, order id and payment key", func(t *testing.T) {
		cleanup(t)

		p := newDonePayment("user-1", 10000)
		p.Card = &model.CardInfo{IssuerCode: "61", Number: "433012******1234", ApproveNo: "00000001", CardType: "credit"}
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Failed to save new payment: %v", err)
		}

		byID, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if byID.OrderID != p.OrderID || byID.TotalAmount != 10000 {
			t.Fatal("Did not find the correct payment by ID")
		}
		if byID.Card == nil || byID.Card.Number != "433012******1234" {
			t.Errorf("card info did not round-trip: %+v", byID.Card)
		}

		byOrder, err := repo.FindByOrderID(ctx, nil, p.OrderID)
		if err != nil {
			t.Fatalf("FindByOrderID failed: %v", err)
		}
		if byOrder.ID != p.ID {
			t.Fatal("Did not find the correct payment by order id")
		}

		byKey, err := repo.FindByPaymentKey(ctx, nil, p.PaymentKey)
		if err != nil {
			t.Fatalf("FindByPaymentKey failed: %v", err)
		}
		if byKey.ID != p.ID {
			t.Fatal("Did not find the correct payment by payment key")
		}
	})

	t.Run("should return ErrNotFound for a missing payment", func(t *testing.T) {
		cleanup(t)
		_, err := repo.FindByID(ctx, nil, uuid.NewString())
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should upsert state mutations on conflict", func(t *testing.T) {
		cleanup(t)

		p := newReadyPayment("user-1", 10000)
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("save: %v", err)
		}

		// Same row, confirmed: key set, status and balance moved.
		approved := time.Now().Truncate(time.Millisecond)
		p.PaymentKey = "pk_confirmed"
		p.Status = model.PaymentStatusDone
		p.ApprovedAt = &approved
		p.UpdatedAt = approved
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		got, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID after upsert: %v", err)
		}
		if got.Status != model.PaymentStatusDone || got.PaymentKey != "pk_confirmed" {
			t.Errorf("upsert did not apply: status=%s key=%s", got.Status, got.PaymentKey)
		}
		if got.ApprovedAt == nil || !got.ApprovedAt.Equal(approved) {
			t.Errorf("approved_at not persisted, got %v", got.ApprovedAt)
		}
	})

	t.Run("should patch status via UpdateStatus", func(t *testing.T) {
		cleanup(t)
		p := newReadyPayment("user-1", 5000)
		repo.Save(ctx, nil, p)

		if err := repo.UpdateStatus(ctx, nil, p.ID, model.PaymentStatusExpired); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		got, _ := repo.FindByID(ctx, nil, p.ID)
		if got.Status != model.PaymentStatusExpired {
			t.Errorf("expected status 'expired', got '%s'", got.Status)
		}
	})

	t.Run("should hide soft-deleted payments", func(t *testing.T) {
		cleanup(t)
		p := newDonePayment("user-1", 5000)
		repo.Save(ctx, nil, p)

		if err := repo.SoftDelete(ctx, nil, p.ID); err != nil {
			t.Fatalf("SoftDelete failed: %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, p.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("soft-deleted payment still visible, err=%v", err)
		}
	})

	t.Run("should list a user's payments with total count", func(t *testing.T) {
		cleanup(t)
		for i := 0; i < 3; i++ {
			repo.Save(ctx, nil, newDonePayment("user-a", 1000))
		}
		repo.Save(ctx, nil, newDonePayment("user-b", 1000))

		items, total, err := repo.ListByUser(ctx, nil, "user-a", 0, 2)
		if err != nil {
			t.Fatalf("ListByUser failed: %v", err)
		}
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 items per page, got %d", len(items))
		}
		for _, p := range items {
			if p.UserID != "user-a" {
				t.Errorf("leaked payment of user %s", p.UserID)
			}
		}
	})

	t.Run("should list pending payments older than a cutoff", func(t *testing.T) {
		cleanup(t)

		// Old and still in flight: should be found.
		p1 := newReadyPayment("user-1", 1000)
		p1.CreatedAt = time.Now().Add(-2 * time.Hour)
		// Recent: should NOT be found.
		p2 := newReadyPayment("user-1", 1000)
		// Old but done: should NOT be found.
		p3 := newDonePayment("user-1", 1000)
		p3.CreatedAt = time.Now().Add(-2 * time.Hour)

		repo.Save(ctx, nil, p1)
		repo.Save(ctx, nil, p2)
		repo.Save(ctx, nil, p3)

		cutoff := time.Now().Add(-1 * time.Hour)
		results, err := repo.ListPendingOlderThan(ctx, nil, cutoff, 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(results) != 1 || results[0].ID != p1.ID {
			t.Errorf("expected only the stale ready payment, got %d rows", len(results))
		}
	})

	t.Run("should list failed payments older than a cutoff", func(t *testing.T) {
		cleanup(t)

		stale := newReadyPayment("user-1", 1000)
		stale.Status = model.PaymentStatusAborted
		stale.CreatedAt = time.Now().Add(-2 * time.Hour)
		stale.UpdatedAt = stale.CreatedAt
		fresh := newReadyPayment("user-1", 1000)
		fresh.Status = model.PaymentStatusAborted

		repo.Save(ctx, nil, stale)
		repo.Save(ctx, nil, fresh)

		results, err := repo.ListFailedOlderThan(ctx, nil, time.Now().Add(-1*time.Hour), 10)
		if err != nil {
			t.Fatalf("ListFailedOlderThan failed: %v", err)
		}
		if len(results) != 1 || results[0].ID != stale.ID {
			t.Errorf("expected only the stale aborted payment, got %d rows", len(results))
		}
	})

	t.Run("should aggregate statistics with filters", func(t *testing.T) {
		cleanup(t)

		done := newDonePayment("user-1", 10000)
		repo.Save(ctx, nil, done)

		partial := newDonePayment("user-1", 20000)
		partial.ApplyCancel(5000, time.Now())
		repo.Save(ctx, nil, partial)

		ready := newReadyPayment("user-1", 3000)
		repo.Save(ctx, nil, ready)

		stats, err := repo.Statistics(ctx, nil, repository.StatFilters{})
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}
		if stats.CountByStatus[model.PaymentStatusDone] != 1 ||
			stats.CountByStatus[model.PaymentStatusPartialCanceled] != 1 ||
			stats.CountByStatus[model.PaymentStatusReady] != 1 {
			t.Errorf("unexpected status counts: %v", stats.CountByStatus)
		}
		if stats.CompletedTotal != 30000 {
			t.Errorf("expected completed total 30000, got %d", stats.CompletedTotal)
		}
		if stats.CanceledTotal != 5000 {
			t.Errorf("expected canceled total 5000, got %d", stats.CanceledTotal)
		}

		// A window in the past matches nothing.
		past := repository.StatFilters{
			From: time.Now().Add(-48 * time.Hour),
			To:   time.Now().Add(-24 * time.Hour),
		}
		empty, err := repo.Statistics(ctx, nil, past)
		if err != nil {
			t.Fatalf("Statistics with window failed: %v", err)
		}
		if len(empty.CountByStatus) != 0 {
			t.Errorf("expected empty stats for past window, got %v", empty.CountByStatus)
		}
	})

	t.Run("should lock the row inside a transaction", func(t *testing.T) {
		cleanup(t)
		p := newDonePayment("user-1", 10000)
		repo.Save(ctx, nil, p)

		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			locked, err := repo.FindByID(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			locked.ApplyCancel(4000, time.Now())
			return repo.Save(ctx, tx, locked)
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}

		got, _ := repo.FindByID(ctx, nil, p.ID)
		if got.Status != model.PaymentStatusPartialCanceled || got.BalanceAmount != 6000 || got.CancelAmount != 4000 {
			t.Errorf("transactional cancel not applied: %+v", got)
		}
	})
}
