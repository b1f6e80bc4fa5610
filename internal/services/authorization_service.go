package services

import (
	"context"

	"github.com/fieldclock/server/internal/repository"
)

// AuthorizationDecision is the result of a job authorization check
type AuthorizationDecision struct {
	Allowed bool
	Reason  string
}

// AuthorizationService decides whether a worker may clock in at a job site.
// The admission pipeline consumes the decision as a precondition; it does
// not re-derive authorization itself.
type AuthorizationService struct {
	siteRepo repository.JobSiteRepo
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(siteRepo repository.JobSiteRepo) *AuthorizationService {
	return &AuthorizationService{siteRepo: siteRepo}
}

// CheckJobAccess returns whether the worker has an active assignment to the
// job site
func (s *AuthorizationService) CheckJobAccess(ctx context.Context, workerID, jobSiteID string) (AuthorizationDecision, error) {
	assigned, err := s.siteRepo.IsAssigned(ctx, workerID, jobSiteID)
	if err != nil {
		return AuthorizationDecision{}, err
	}
	if !assigned {
		return AuthorizationDecision{Allowed: false, Reason: "worker is not assigned to this job site"}, nil
	}
	return AuthorizationDecision{Allowed: true}, nil
}
