package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
)

// Principal kinds carried in the JWT. Students log in with their USN or
// email, faculty with their staff code or email, and operational club
// members with their dedicated club credentials.
const (
	KindStudent = "STUDENT"
	KindMember  = "MEMBER"
	KindFaculty = "FACULTY"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Kind         string   `json:"kind"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	USN          string   `json:"usn,omitempty"`
	ClubID       string   `json:"club_id,omitempty"`
	StudentID    string   `json:"student_id,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
}

func (c *Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type auth struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAuth(conf *core.Config) *auth {
	return &auth{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "principalToken",
			Claims:        new(Claims),
		},
	}
}

func (a *auth) newClaims(kind, subject string, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   subject,
			Audience:  "CampusHub",
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Kind:         kind,
	}
}

func (a *auth) studentClaims(std student.Student, origIat ...int64) *Claims {
	claims := a.newClaims(KindStudent, std.ID, origIat...)
	claims.Name = std.FullName()
	claims.Email = std.Email
	claims.USN = std.USN
	return claims
}

func (a *auth) facultyClaims(fac faculty.Faculty, origIat ...int64) *Claims {
	claims := a.newClaims(KindFaculty, fac.ID, origIat...)
	claims.Name = fac.FullName()
	claims.Email = fac.Email
	return claims
}

func (a *auth) memberClaims(mbr club.Member, origIat ...int64) *Claims {
	claims := a.newClaims(KindMember, mbr.ID, origIat...)
	claims.ClubID = mbr.ClubID
	claims.StudentID = mbr.StudentID
	for _, perm := range []string{
		club.PermCreateEvents, club.PermEditEvents, club.PermDeleteEvents,
		club.PermStartEvents, club.PermEndEvents, club.PermMarkAttendance,
		club.PermAddMembers, club.PermRemoveMembers, club.PermViewReports,
	} {
		if mbr.Role.Has(perm) {
			claims.Permissions = append(claims.Permissions, perm)
		}
	}
	return claims
}

func authenticateStudent(ctx context.Context, a *auth, svc student.Service, usn, pwd string) (*Claims, error) {
	std, err := svc.GetByUSNOrEmail(ctx, usn)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding student by USN or email")
	}
	if err = std.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !std.Active() {
		return nil, errAccountDeactivated
	}
	if err = svc.SetLastLogin(ctx, std); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return a.studentClaims(std), nil
}

func authenticateFaculty(ctx context.Context, a *auth, svc faculty.Service, code, pwd string) (*Claims, error) {
	fac, err := svc.GetByCodeOrEmail(ctx, code)
	if err != nil {
		if errors.Cause(err) == faculty.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding faculty by code or email")
	}
	if err = fac.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !fac.Active() {
		return nil, errAccountDeactivated
	}
	if err = svc.SetLastLogin(ctx, fac); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return a.facultyClaims(fac), nil
}

func authenticateMember(ctx context.Context, a *auth, svc club.Service, loginID, pwd string) (*Claims, error) {
	mbr, err := svc.Authenticate(ctx, loginID, pwd)
	if err != nil {
		if errors.Cause(err) == club.ErrMemberNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, err
	}
	return a.memberClaims(mbr), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(a *auth, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey.([]byte))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get("principalToken").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// refreshToken re-issues a token for the authenticated principal after
// re-checking that the underlying account is still active.
func refreshToken(ctx echo.Context, a *auth, deps ServerDeps) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	reqCtx := ctx.Request().Context()
	var newClaims *Claims
	switch claims.Kind {
	case KindStudent:
		std, err := deps.StudentSvc.GetByID(reqCtx, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "finding student by ID")
		}
		if !std.Active() {
			return "", errAccountDeactivated
		}
		newClaims = a.studentClaims(std, claims.OrigIssuedAt)
	case KindFaculty:
		fac, err := deps.FacultySvc.GetByID(reqCtx, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "finding faculty by ID")
		}
		if !fac.Active() {
			return "", errAccountDeactivated
		}
		newClaims = a.facultyClaims(fac, claims.OrigIssuedAt)
	case KindMember:
		mbr, err := deps.ClubSvc.GetMembership(reqCtx, claims.ClubID, claims.StudentID)
		if err != nil {
			return "", errors.Wrap(err, "finding club membership")
		}
		if !mbr.Active() {
			return "", errAccountDeactivated
		}
		newClaims = a.memberClaims(mbr, claims.OrigIssuedAt)
	default:
		return "", errUnauthorized
	}

	token, err := GenerateToken(a, newClaims)
	return token, errors.Wrap(err, "generating token")
}
