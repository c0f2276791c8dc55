package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
)

// AccessChecker decides whether an identity may promote or modify a subject.
type AccessChecker struct {
	repo Repository
}

func NewAccessChecker(repo Repository) (*AccessChecker, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	return &AccessChecker{repo: repo}, nil
}

// CanMutate returns nil when allowed, a NOT_FOUND error for unknown subjects
// and FORBIDDEN otherwise. A nil tx reads outside any transaction.
func (c *AccessChecker) CanMutate(ctx context.Context, tx *gorm.DB, subjectType enums.SubjectType, subjectID uuid.UUID, identity auth.Identity) error {
	repo := c.repo.WithTx(tx)
	switch subjectType {
	case enums.SubjectListing:
		owner, err := repo.FindOwnership(ctx, subjectID)
		if err != nil {
			return lookupError(err, "listing not found", "load listing")
		}
		if !canMutateListing(*owner, identity) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to promote this listing")
		}
		return nil
	case enums.SubjectSpecialist:
		owner, err := repo.FindSpecialistOwnership(ctx, subjectID)
		if err != nil {
			return lookupError(err, "specialist not found", "load specialist")
		}
		if !identity.IsPrivileged() && owner.OwnerID != identity.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to promote this specialist")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported subject type").
			WithDetails(map[string]any{"subject_type": subjectType})
	}
}

func canMutateListing(owner Ownership, identity auth.Identity) bool {
	if identity.IsPrivileged() {
		return true
	}
	if owner.OwnerID == identity.UserID {
		return true
	}
	return owner.DealerID != nil && identity.DealerID != nil && *owner.DealerID == *identity.DealerID
}

func lookupError(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
