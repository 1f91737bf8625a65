package course

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	errInvalidCode     = errors.New("Invalid enrollment code. Please check the code and try again.")
	errCodeNotValid    = errors.New("Enrollment code is not valid or has expired")
	errCodeAlreadyUsed = errors.New("You have already used this enrollment code")
	errCodeEnrolled    = errors.New("You are already enrolled in this course")
)

func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func (svc *service) uniqueCode(ctx context.Context) (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", errors.Wrap(err, "generating code")
		}
		_, err = svc.repo.GetCodeByCode(ctx, code)
		if errors.Cause(err) == ErrCodeNotFound {
			return code, nil
		} else if err != nil {
			return "", errors.Wrap(err, "checking code uniqueness")
		}
	}
}

// GenerateCodes creates enrollment codes for an offering, for late enrollees and transferees.
func (svc *service) GenerateCodes(ctx context.Context, actor user.User, in GenerateCodesInput) ([]EnrollmentCode, error) {
	offering, err := svc.repo.GetOffering(ctx, in.OfferingID)
	if err != nil {
		return nil, err
	}
	if !canManageOffering(actor, offering) {
		return nil, core.ErrForbidden
	}

	now := NowFunc().UTC()
	codes := make([]EnrollmentCode, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		code, err := svc.uniqueCode(ctx)
		if err != nil {
			return nil, err
		}
		ec, err := svc.repo.SaveCode(ctx, EnrollmentCode{
			ID:         newID(),
			Code:       code,
			OfferingID: offering.ID,
			IsActive:   true,
			MaxUses:    in.MaxUses,
			ValidFrom:  now,
			ValidUntil: now.Add(time.Duration(in.ValidHours) * time.Hour),
			CreatedBy:  actor.ID,
			CreatedAt:  now,
			Notes:      in.Notes,
		})
		if err != nil {
			return nil, errors.Wrap(err, "saving enrollment code")
		}
		codes = append(codes, ec)
	}
	return codes, nil
}

func (svc *service) DeactivateCode(ctx context.Context, actor user.User, id string) (EnrollmentCode, error) {
	ec, err := svc.repo.GetCode(ctx, id)
	if err != nil {
		return EnrollmentCode{}, err
	}
	if ec.CreatedBy != actor.ID && !actor.IsAdmin() {
		return EnrollmentCode{}, core.ErrForbidden
	}
	ec.IsActive = false
	return svc.repo.SaveCode(ctx, ec)
}

// ListCodes returns the codes of an offering, or the codes created by actor when offeringID is empty.
// Admins get every code when offeringID is empty.
func (svc *service) ListCodes(ctx context.Context, actor user.User, offeringID string) ([]EnrollmentCode, error) {
	var filter CodeFilter
	if offeringID != "" {
		offering, err := svc.repo.GetOffering(ctx, offeringID)
		if err != nil {
			return nil, err
		}
		if !canManageOffering(actor, offering) {
			return nil, core.ErrForbidden
		}
		filter.OfferingIDs = []string{offering.ID}
	} else if !actor.IsAdmin() {
		filter.CreatedBy = actor.ID
	}
	return svc.repo.QueryCodes(ctx, filter)
}

// UseCode directly enrolls a student with an enrollment code, as a late enrollment.
func (svc *service) UseCode(ctx context.Context, actor user.User, code, ip string) (EnrollResult, error) {
	if !actor.IsStudent() {
		return EnrollResult{}, core.ErrForbidden
	}
	code = normalizeCode(code)
	if code == "" {
		return EnrollResult{}, core.NewFieldError("code", "Please enter an enrollment code.")
	}

	var res EnrollResult
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		ec, err := svc.repo.GetCodeByCode(ctx, code, exec)
		if err != nil {
			if errors.Cause(err) == ErrCodeNotFound {
				return core.NewValidationError(errInvalidCode)
			}
			return errors.Wrap(err, "finding enrollment code")
		}

		now := NowFunc().UTC()
		if !ec.IsValid(now) {
			return core.NewValidationError(errCodeNotValid)
		}
		used, err := svc.repo.HasUsedCode(ctx, ec.ID, actor.ID, exec)
		if err != nil {
			return errors.Wrap(err, "checking code usage")
		}
		if used {
			return core.NewValidationError(errCodeAlreadyUsed)
		}
		if _, err = svc.repo.FindEnrollment(ctx, actor.ID, ec.OfferingID, exec); err == nil {
			return core.NewValidationError(errCodeEnrolled)
		} else if errors.Cause(err) != ErrEnrollmentNotFound {
			return errors.Wrap(err, "finding enrollment")
		}

		enr, err := svc.repo.SaveEnrollment(ctx, Enrollment{
			ID:             newID(),
			StudentID:      actor.ID,
			OfferingID:     ec.OfferingID,
			Status:         StatusEnrolled,
			EnrollmentType: EnrollLate,
			EnrolledAt:     now,
			UpdatedAt:      now,
		}, exec)
		if err != nil {
			if errors.Cause(err) == ErrAlreadyEnrolled {
				return core.NewValidationError(errCodeEnrolled)
			}
			return errors.Wrap(err, "creating enrollment")
		}
		if _, err = svc.repo.CreateCodeUsage(ctx, CodeUsage{
			ID:           newID(),
			CodeID:       ec.ID,
			UserID:       actor.ID,
			EnrollmentID: enr.ID,
			UsedAt:       now,
			IPAddress:    ip,
		}, exec); err != nil {
			return errors.Wrap(err, "recording code usage")
		}
		ec.UsedCount++
		if _, err = svc.repo.SaveCode(ctx, ec, exec); err != nil {
			return errors.Wrap(err, "updating code usage count")
		}

		offering, err := svc.repo.GetOffering(ctx, ec.OfferingID, exec)
		if err != nil {
			return errors.Wrap(err, "getting offering")
		}
		crs, err := svc.repo.GetCourse(ctx, offering.CourseID, exec)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		offering.Course = &crs
		enr.Offering = &offering
		res = EnrollResult{
			Enrollment: enr,
			Message:    fmt.Sprintf("Successfully enrolled in %s using enrollment code!", crs.Code),
		}
		return nil
	})
	return res, err
}
