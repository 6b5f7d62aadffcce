package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionIssuer signs dashboard session tokens.
type SessionIssuer interface {
	Issue(session domain.Session) (string, error)
}

// AdminAccount is the dashboard login configured through the environment.
type AdminAccount struct {
	Username string
	Password string
}

// DashboardService backs the cookie-authenticated dashboard.
type DashboardService struct {
	tenants   domain.TenantRepository
	workshops *WorkshopService
	tokens    SessionIssuer
	admin     AdminAccount
	logger    *slog.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(tenants domain.TenantRepository, workshops *WorkshopService, tokens SessionIssuer, admin AdminAccount, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		tenants:   tenants,
		workshops: workshops,
		tokens:    tokens,
		admin:     admin,
		logger:    logger,
	}
}

// Login checks the configured admin account first, then the tenant table,
// and returns a signed session token.
func (s *DashboardService) Login(ctx context.Context, username, password string) (string, *domain.Session, error) {
	session, err := s.authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Warn("dashboard login rejected", "username", username)
			return "", nil, domain.NewAPIError(domain.KindUnauthorized, "Invalid username or password")
		}
		return "", nil, domain.FromError(err)
	}

	token, err := s.tokens.Issue(*session)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("dashboard login", "username", session.Username, "admin", session.Admin)
	return token, session, nil
}

func (s *DashboardService) authenticate(ctx context.Context, username, password string) (*domain.Session, error) {
	if s.admin.Username != "" && s.admin.Password != "" &&
		equalConstantTime(username, s.admin.Username) && equalConstantTime(password, s.admin.Password) {
		return &domain.Session{Username: s.admin.Username, TenantName: s.admin.Username, Admin: true}, nil
	}
	if s.tenants == nil {
		return nil, domain.ErrUnavailable
	}

	tenant, err := s.tenants.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !tenant.IsActive() || !checkPassword(password, tenant.Password) {
		return nil, ErrInvalidCredentials
	}
	return &domain.Session{
		Username:   tenant.Username,
		TenantName: tenant.TenantName,
		LogoFile:   tenant.LogoFile,
	}, nil
}

// checkPassword accepts bcrypt hashes and legacy plaintext credentials.
func checkPassword(password, stored string) bool {
	if stored == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return equalConstantTime(password, stored)
}

func equalConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Workshops lists sanitized workshops for the dashboard. It is not metered.
func (s *DashboardService) Workshops(ctx context.Context, filter domain.WorkshopFilter, page domain.Page) (*WorkshopPage, error) {
	return s.workshops.List(ctx, filter, page)
}

// ExportWorkshops returns up to MaxPageLimit sanitized workshops matching filter.
func (s *DashboardService) ExportWorkshops(ctx context.Context, filter domain.WorkshopFilter) ([]domain.Workshop, error) {
	page, err := s.workshops.List(ctx, filter, domain.Page{Limit: domain.MaxPageLimit})
	if err != nil {
		return nil, err
	}
	return page.Workshops, nil
}

var exportColumns = []string{"id", "name", "street", "zip_code", "city", "concepts", "email", "phone", "website"}

// WriteWorkshopsCSV writes workshops as CSV with a header row. List fields
// are joined with "; ".
func WriteWorkshopsCSV(w io.Writer, workshops []domain.Workshop) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return err
	}
	for _, ws := range workshops {
		record := []string{
			ws.ID,
			ws.Name,
			ws.Street,
			ws.ZipCode,
			ws.City,
			strings.Join(ws.Concepts, "; "),
			strings.Join(ws.Email, "; "),
			ws.Phone,
			ws.Website,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
