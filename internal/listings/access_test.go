package listings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
)

type fakeRepository struct {
	listings    map[uuid.UUID]Ownership
	specialists map[uuid.UUID]Ownership
	lookupErr   error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindForIndex(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListPublishedPage(ctx context.Context, offset, limit int) ([]models.Listing, error) {
	return nil, nil
}

func (f *fakeRepository) ListPublishedIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeRepository) FindOwnership(ctx context.Context, id uuid.UUID) (*Ownership, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	owner, ok := f.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &owner, nil
}

func (f *fakeRepository) FindSpecialistOwnership(ctx context.Context, id uuid.UUID) (*Ownership, error) {
	owner, ok := f.specialists[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &owner, nil
}

func (f *fakeRepository) LockSubject(ctx context.Context, subjectType enums.SubjectType, id uuid.UUID) error {
	return nil
}

func (f *fakeRepository) UpdateBoostScore(ctx context.Context, id uuid.UUID, score float64) error {
	return nil
}

func (f *fakeRepository) UpdateSpecialistBoostScore(ctx context.Context, id uuid.UUID, score float64) error {
	return nil
}

func (f *fakeRepository) Touch(ctx context.Context, id uuid.UUID, now time.Time) error { return nil }

func TestCanMutateListing(t *testing.T) {
	owner := uuid.New()
	dealer := uuid.New()
	otherDealer := uuid.New()
	listingID := uuid.New()
	dealerListingID := uuid.New()

	repo := &fakeRepository{listings: map[uuid.UUID]Ownership{
		listingID:       {OwnerID: owner},
		dealerListingID: {OwnerID: uuid.New(), DealerID: &dealer},
	}}
	checker, err := NewAccessChecker(repo)
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}

	tests := []struct {
		name     string
		subject  uuid.UUID
		identity auth.Identity
		wantCode pkgerrors.Code
	}{
		{name: "owner", subject: listingID, identity: auth.Identity{UserID: owner, Role: enums.UserRoleUser}},
		{name: "admin", subject: listingID, identity: auth.Identity{UserID: uuid.New(), Role: enums.UserRoleAdmin}},
		{name: "moderator", subject: listingID, identity: auth.Identity{UserID: uuid.New(), Role: enums.UserRoleModerator}},
		{name: "same dealer", subject: dealerListingID, identity: auth.Identity{UserID: uuid.New(), Role: enums.UserRoleDealer, DealerID: &dealer}},
		{name: "other dealer", subject: dealerListingID, identity: auth.Identity{UserID: uuid.New(), Role: enums.UserRoleDealer, DealerID: &otherDealer}, wantCode: pkgerrors.CodeForbidden},
		{name: "dealer on private listing", subject: listingID, identity: auth.Identity{UserID: uuid.New(), Role: enums.UserRoleDealer, DealerID: &dealer}, wantCode: pkgerrors.CodeForbidden},
		{name: "stranger", subject: listingID, identity: auth.Identity{UserID: uuid.New(), Role: enums.UserRoleUser}, wantCode: pkgerrors.CodeForbidden},
		{name: "missing", subject: uuid.New(), identity: auth.Identity{UserID: owner, Role: enums.UserRoleUser}, wantCode: pkgerrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.CanMutate(context.Background(), nil, enums.SubjectListing, tt.subject, tt.identity)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				return
			}
			if !pkgerrors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestCanMutateSpecialistHasNoDealerPath(t *testing.T) {
	dealer := uuid.New()
	user := uuid.New()
	specialistID := uuid.New()
	repo := &fakeRepository{specialists: map[uuid.UUID]Ownership{specialistID: {OwnerID: user}}}
	checker, _ := NewAccessChecker(repo)
	ctx := context.Background()

	if err := checker.CanMutate(ctx, nil, enums.SubjectSpecialist, specialistID, auth.Identity{UserID: user, Role: enums.UserRoleUser}); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	err := checker.CanMutate(ctx, nil, enums.SubjectSpecialist, specialistID, auth.Identity{UserID: uuid.New(), Role: enums.UserRoleDealer, DealerID: &dealer})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	err = checker.CanMutate(ctx, nil, enums.SubjectSpecialist, uuid.New(), auth.Identity{UserID: user, Role: enums.UserRoleUser})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanMutateWrapsLookupFailures(t *testing.T) {
	boom := errors.New("connection reset")
	checker, _ := NewAccessChecker(&fakeRepository{lookupErr: boom})
	err := checker.CanMutate(context.Background(), nil, enums.SubjectListing, uuid.New(), auth.Identity{UserID: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped dependency error, got %v", err)
	}
}

func TestCanMutateRejectsUnknownSubjectType(t *testing.T) {
	checker, _ := NewAccessChecker(&fakeRepository{})
	err := checker.CanMutate(context.Background(), nil, enums.SubjectType("DEALER"), uuid.New(), auth.Identity{UserID: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
