package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"waypoint/api/internal/access"
	"waypoint/api/internal/auth"
	"waypoint/api/internal/authpw"
	"waypoint/api/internal/blob"
	"waypoint/api/internal/config"
	"waypoint/api/internal/credit"
	"waypoint/api/internal/email"
	"waypoint/api/internal/export"
	"waypoint/api/internal/history"
	"waypoint/api/internal/notify"
	"waypoint/api/internal/progress"
	"waypoint/api/internal/schema"
	"waypoint/api/internal/search"
	"waypoint/api/internal/store"
	"waypoint/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// StepView is what callers see of a step document: the migrated payload and
// the server-computed state beside it.
type StepView struct {
	ProjectID   string          `json:"projectId"`
	StepNumber  int             `json:"stepNumber"`
	StepName    string          `json:"stepName"`
	Payload     json.RawMessage `json:"payload"`
	IsSubmitted bool            `json:"isSubmitted"`
	Progress    int             `json:"progress"`
	UpdatedBy   string          `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}

// SaveResult is the outcome of a save, including whether this save consumed
// the step's one-time credit charge.
type SaveResult struct {
	Step          StepView `json:"step"`
	Charged       bool     `json:"charged"`
	CreditBalance int      `json:"creditBalance"`
}

// StepProgress is one row of the project progress summary.
type StepProgress struct {
	StepNumber  int    `json:"stepNumber"`
	StepName    string `json:"stepName"`
	Progress    int    `json:"progress"`
	IsSubmitted bool   `json:"isSubmitted"`
	Started     bool   `json:"started"`
}

// ProjectProgressView aggregates per-step completion for one project.
type ProjectProgressView struct {
	ProjectID    string         `json:"projectId"`
	ProgressRate int            `json:"progressRate"`
	CurrentStep  int            `json:"currentStep"`
	Steps        []StepProgress `json:"steps"`
}

type dataStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash, role string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)

	CreateRefreshSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	GetRefreshSession(ctx context.Context, token string) (*store.RefreshSession, error)
	DeleteRefreshSession(ctx context.Context, token string) error

	CreateProject(ctx context.Context, ownerID, name, description string, initialCredits int) (*store.Project, error)
	GetProject(ctx context.Context, id string) (*store.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]*store.Project, error)
	UpdateProject(ctx context.Context, id, name, description string) error
	UpdateProjectProgress(ctx context.Context, id string, progressRate, currentStep int) error
	DeleteProject(ctx context.Context, id string) error

	AddMember(ctx context.Context, projectID, userID, role string) error
	GetMemberRole(ctx context.Context, projectID, userID string) (string, error)
	ListMembers(ctx context.Context, projectID string) ([]*store.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID string) error

	GetStepDocument(ctx context.Context, projectID string, stepNumber int) (*store.StepDocument, error)
	ListStepDocuments(ctx context.Context, projectID string) ([]*store.StepDocument, error)
	UpsertStepDocument(ctx context.Context, doc *store.StepDocument) error
	SetStepSubmitted(ctx context.Context, projectID string, stepNumber int, submitted bool, updatedBy string) error

	ChargeStep(ctx context.Context, projectID string, stepNumber, cost int) (bool, error)
	CreditBalance(ctx context.Context, projectID string) (int, error)
	ListCharges(ctx context.Context, projectID string) ([]*store.CreditCharge, error)

	Ping(ctx context.Context) error
}

type notifierService interface {
	Publish(ctx context.Context, projectID string, event notify.Event) error
	Subscribe(ctx context.Context, projectID string, stepNumber int) (*notify.Subscription, error)
}

type historyService interface {
	CommitStep(ctx context.Context, projectID string, stepNumber int, snapshot []byte, authorName, authorEmail, message string) (string, error)
	StepHistory(ctx context.Context, projectID string, stepNumber, limit int) ([]history.CommitInfo, error)
	StepSnapshot(ctx context.Context, projectID string, stepNumber int, hash string) ([]byte, error)
}

type revocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Deps carries the optional collaborators. Any of them may be nil; the
// service degrades to core behavior without them.
type Deps struct {
	Notifier notifierService
	History  historyService
	Sessions revocationStore
	Search   *search.Service
	Email    *email.Service
	Blob     *blob.Service
	Export   *export.Service
	AuthPw   *authpw.Service
}

type Service struct {
	cfg      config.Config
	store    dataStore
	gate     *credit.Gate
	notifier notifierService
	history  historyService
	sessions revocationStore
	search   *search.Service
	email    *email.Service
	blob     *blob.Service
	export   *export.Service
	authpw   *authpw.Service
}

func NewService(cfg config.Config, db dataStore, deps Deps) *Service {
	return &Service{
		cfg:      cfg,
		store:    db,
		gate:     credit.NewGate(chargeFunc(db.ChargeStep), cfg.StepCreditCost),
		notifier: deps.Notifier,
		history:  deps.History,
		sessions: deps.Sessions,
		search:   deps.Search,
		email:    deps.Email,
		blob:     deps.Blob,
		export:   deps.Export,
		authpw:   deps.AuthPw,
	}
}

// chargeFunc adapts the store method to the credit ledger interface.
type chargeFunc func(ctx context.Context, projectID string, stepNumber, cost int) (bool, error)

func (f chargeFunc) ChargeStep(ctx context.Context, projectID string, stepNumber, cost int) (bool, error) {
	return f(ctx, projectID, stepNumber, cost)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SearchService() *search.Service {
	return s.search
}

func (s *Service) ExportService() *export.Service {
	return s.export
}

func (s *Service) BlobService() *blob.Service {
	return s.blob
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// --- sessions ---

func (s *Service) issueSession(ctx context.Context, user *store.User) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	refresh := util.NewID("rft")
	if err := s.store.CreateRefreshSession(ctx, refresh, user.ID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}
	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Signup creates the account and starts email verification. When SMTP is
// not configured the verification token comes back to the caller so dev
// setups can complete the flow by hand.
func (s *Service) Signup(ctx context.Context, emailAddr, name, password string) (userID, devVerifyToken string, err error) {
	if s.authpw == nil {
		return "", "", domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication not configured", nil)
	}
	user, err := s.authpw.Signup(ctx, emailAddr, name, password)
	if err != nil {
		return "", "", err
	}
	token, err := s.authpw.StartVerification(ctx, user.ID)
	if err != nil {
		log.Printf("signup %s: start verification: %v", user.ID, err)
		return user.ID, "", nil
	}
	if s.SMTPConfigured() {
		verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.AppBaseURL, token)
		go func() {
			if err := s.email.SendVerificationEmail(user.Email, user.Name, verifyURL); err != nil {
				log.Printf("signup %s: send verification email: %v", user.ID, err)
			}
		}()
		return user.ID, "", nil
	}
	return user.ID, token, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if s.authpw == nil {
		return domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication not configured", nil)
	}
	return s.authpw.VerifyEmail(ctx, token)
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	if s.authpw == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication not configured", nil)
	}
	user, err := s.authpw.Signin(ctx, emailAddr, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	rec, err := s.store.GetRefreshSession(ctx, refreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err != nil {
		return Session{}, err
	}
	if time.Now().After(rec.ExpiresAt) {
		_ = s.store.DeleteRefreshSession(ctx, refreshToken)
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token expired", nil)
	}
	user, err := s.store.GetUserByID(ctx, rec.UserID)
	if err != nil {
		return Session{}, err
	}
	// Rotate: the old refresh token dies with the new issue.
	if err := s.store.DeleteRefreshSession(ctx, refreshToken); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) {
	if refreshToken != "" {
		_ = s.store.DeleteRefreshSession(ctx, refreshToken)
	}
	if accessToken == "" || s.sessions == nil {
		return
	}
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), accessToken)
	if err != nil {
		return
	}
	if err := s.sessions.Revoke(ctx, claims.JTI, time.Unix(claims.Exp, 0)); err != nil {
		log.Printf("logout: revoke token: %v", err)
	}
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.sessions != nil {
		revoked, err := s.sessions.IsRevoked(ctx, claims.JTI)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// --- projects ---

// memberRole resolves the caller's effective role on a project. Admins act
// as owners everywhere.
func (s *Service) memberRole(ctx context.Context, session Session, projectID string) (access.Role, error) {
	if session.Role == string(access.RoleAdmin) {
		return access.RoleOwner, nil
	}
	role, err := s.store.GetMemberRole(ctx, projectID, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return "", permissionError("Not a member of this project")
	}
	if err != nil {
		return "", err
	}
	return access.Normalize(role), nil
}

func (s *Service) requireAction(ctx context.Context, session Session, projectID string, action access.Action) (access.Role, error) {
	role, err := s.memberRole(ctx, session, projectID)
	if err != nil {
		return "", err
	}
	if !access.Can(role, action) {
		return "", permissionError("Insufficient role for this operation")
	}
	return role, nil
}

func (s *Service) CreateProject(ctx context.Context, session Session, name, description string) (*store.Project, error) {
	if name == "" {
		return nil, validationError("name is required", nil)
	}
	project, err := s.store.CreateProject(ctx, session.UserID, name, description, s.cfg.InitialCredits)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{
			ID: project.ID, Name: project.Name, Description: project.Description, OwnerID: project.OwnerID,
		})
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (*store.Project, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("Project not found")
	}
	return project, err
}

func (s *Service) ListProjects(ctx context.Context, session Session) ([]*store.Project, error) {
	return s.store.ListProjectsForUser(ctx, session.UserID)
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID, name, description string) (*store.Project, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionManage); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, validationError("name is required", nil)
	}
	if err := s.store.UpdateProject(ctx, projectID, name, description); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Project not found")
		}
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{
			ID: project.ID, Name: project.Name, Description: project.Description, OwnerID: project.OwnerID,
		})
	}
	return project, nil
}

func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionManage); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Project not found")
		}
		return err
	}
	if s.search != nil {
		s.search.DeleteProject(projectID)
	}
	return nil
}

func (s *Service) AddMember(ctx context.Context, session Session, projectID, emailAddr, role string) (*store.ProjectMember, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionManage); err != nil {
		return nil, err
	}
	normalized := access.Normalize(role)
	if normalized == access.RoleOwner || normalized == access.RoleAdmin {
		return nil, validationError("role must be viewer, editor, or mentor", nil)
	}
	user, err := s.store.GetUserByEmail(ctx, emailAddr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("No account with that email")
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, projectID, user.ID, string(normalized)); err != nil {
		return nil, err
	}
	return &store.ProjectMember{
		ProjectID: projectID, UserID: user.ID, Role: string(normalized),
		UserName: user.Name, UserEmail: user.Email,
	}, nil
}

func (s *Service) ListMembers(ctx context.Context, session Session, projectID string) ([]*store.ProjectMember, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, projectID)
}

func (s *Service) RemoveMember(ctx context.Context, session Session, projectID, userID string) error {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionManage); err != nil {
		return err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if userID == project.OwnerID {
		return conflictError("The owner cannot be removed")
	}
	if err := s.store.RemoveMember(ctx, projectID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Member not found")
		}
		return err
	}
	return nil
}

// --- step documents ---

func stepDefinition(stepNumber int) (*schema.StepDefinition, error) {
	def := schema.Step(stepNumber)
	if def == nil {
		return nil, validationError(fmt.Sprintf("stepNumber must be between 1 and %d", schema.TotalSteps()), nil)
	}
	return def, nil
}

// LoadStep returns the step document with its payload migrated to the
// canonical shape. A step never saved reads as an empty, unsubmitted
// document with zero progress. Progress is recomputed from the migrated
// payload, so stale stored values never surface.
func (s *Service) LoadStep(ctx context.Context, session Session, projectID string, stepNumber int) (StepView, error) {
	def, err := stepDefinition(stepNumber)
	if err != nil {
		return StepView{}, err
	}
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return StepView{}, err
	}

	doc, err := s.store.GetStepDocument(ctx, projectID, stepNumber)
	if errors.Is(err, store.ErrNotFound) {
		return StepView{
			ProjectID:  projectID,
			StepNumber: stepNumber,
			StepName:   def.Name,
			Payload:    json.RawMessage("{}"),
		}, nil
	}
	if err != nil {
		return StepView{}, err
	}

	payload, err := schema.ParsePayload(doc.Payload)
	if err != nil {
		return StepView{}, fmt.Errorf("decode stored payload: %w", err)
	}
	migrated, ambiguity := schema.Migrate(stepNumber, payload)
	if ambiguity != nil {
		log.Printf("step %s/%d: unrecognized payload shape, keys=%v", projectID, stepNumber, ambiguity.Keys)
	}
	raw, err := migrated.Encode()
	if err != nil {
		return StepView{}, fmt.Errorf("encode migrated payload: %w", err)
	}
	return StepView{
		ProjectID:   projectID,
		StepNumber:  stepNumber,
		StepName:    def.Name,
		Payload:     raw,
		IsSubmitted: doc.IsSubmitted,
		Progress:    progress.Score(def, migrated),
		UpdatedBy:   doc.UpdatedBy,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// SaveStep persists a step payload. The first save of a step charges the
// project's credit balance exactly once; a charge that cannot be covered
// aborts the save. A submitted step is read-only until withdrawn.
func (s *Service) SaveStep(ctx context.Context, session Session, projectID string, stepNumber int, rawPayload json.RawMessage) (SaveResult, error) {
	def, err := stepDefinition(stepNumber)
	if err != nil {
		return SaveResult{}, err
	}
	if _, err := s.requireAction(ctx, session, projectID, access.ActionWrite); err != nil {
		return SaveResult{}, err
	}

	payload, err := schema.ParsePayload(rawPayload)
	if err != nil {
		return SaveResult{}, validationError("payload must be a JSON object", nil)
	}

	existing, err := s.store.GetStepDocument(ctx, projectID, stepNumber)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return SaveResult{}, err
	}
	if existing != nil && existing.IsSubmitted {
		return SaveResult{}, conflictError("Step is submitted and read-only; withdraw it first")
	}

	result, err := s.gate.ChargeOnce(ctx, projectID, stepNumber)
	if err != nil {
		if errors.Is(err, credit.ErrInsufficientCredit) {
			balance, _ := s.store.CreditBalance(ctx, projectID)
			return SaveResult{}, insufficientCreditError(balance, s.gate.Cost())
		}
		return SaveResult{}, err
	}

	migrated, ambiguity := schema.Migrate(stepNumber, payload)
	if ambiguity != nil {
		log.Printf("step %s/%d: saving unrecognized payload shape, keys=%v", projectID, stepNumber, ambiguity.Keys)
	}
	score := progress.Score(def, migrated)
	encoded, err := migrated.Encode()
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode payload: %w", err)
	}

	doc := &store.StepDocument{
		ProjectID:  projectID,
		StepNumber: stepNumber,
		Payload:    encoded,
		Progress:   score,
		UpdatedBy:  session.UserID,
	}
	if err := s.store.UpsertStepDocument(ctx, doc); err != nil {
		return SaveResult{}, err
	}

	if err := s.refreshProjectProgress(ctx, projectID, stepNumber); err != nil {
		log.Printf("save step %s/%d: refresh progress: %v", projectID, stepNumber, err)
	}
	s.afterStepChange(ctx, session, projectID, stepNumber, encoded, notify.EventSaved)

	balance, err := s.store.CreditBalance(ctx, projectID)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{
		Step: StepView{
			ProjectID:   projectID,
			StepNumber:  stepNumber,
			StepName:    def.Name,
			Payload:     encoded,
			IsSubmitted: false,
			Progress:    score,
			UpdatedBy:   session.UserID,
			UpdatedAt:   doc.UpdatedAt,
		},
		Charged:       result.Charged,
		CreditBalance: balance,
	}, nil
}

// afterStepChange fans out the side effects of an accepted change: the
// change notification, the search index, and the history journal. All are
// best effort.
func (s *Service) afterStepChange(ctx context.Context, session Session, projectID string, stepNumber int, encoded []byte, eventType string) {
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, projectID, notify.Event{StepNumber: stepNumber, EventType: eventType}); err != nil {
			log.Printf("step %s/%d: publish %s: %v", projectID, stepNumber, eventType, err)
		}
	}
	if s.search != nil && eventType == notify.EventSaved {
		s.search.IndexStep(search.StepRecord{
			ID:         fmt.Sprintf("%s:%d", projectID, stepNumber),
			ProjectID:  projectID,
			StepNumber: stepNumber,
			StepName:   schema.Step(stepNumber).Name,
			Content:    string(encoded),
		})
	}
	if s.history != nil && eventType == notify.EventSaved {
		message := fmt.Sprintf("save step %d", stepNumber)
		if _, err := s.history.CommitStep(ctx, projectID, stepNumber, encoded, session.UserName, session.UserID+"@waypoint", message); err != nil {
			log.Printf("step %s/%d: history commit: %v", projectID, stepNumber, err)
		}
	}
}

// refreshProjectProgress recomputes the project-level completion rate as the
// mean over the fixed step sequence.
func (s *Service) refreshProjectProgress(ctx context.Context, projectID string, touchedStep int) error {
	docs, err := s.store.ListStepDocuments(ctx, projectID)
	if err != nil {
		return err
	}
	sum := 0
	for _, doc := range docs {
		sum += doc.Progress
	}
	rate := int(math.Round(float64(sum) / float64(schema.TotalSteps())))
	return s.store.UpdateProjectProgress(ctx, projectID, rate, touchedStep)
}

// SubmitStep freezes a step for review. The caller must acknowledge that
// the step becomes read-only.
func (s *Service) SubmitStep(ctx context.Context, session Session, projectID string, stepNumber int, acknowledged bool) (StepView, error) {
	def, err := stepDefinition(stepNumber)
	if err != nil {
		return StepView{}, err
	}
	if !acknowledged {
		return StepView{}, validationError("submission requires acknowledging the read-only freeze", nil)
	}
	if _, err := s.requireAction(ctx, session, projectID, access.ActionSubmit); err != nil {
		return StepView{}, err
	}

	doc, err := s.store.GetStepDocument(ctx, projectID, stepNumber)
	if errors.Is(err, store.ErrNotFound) {
		return StepView{}, conflictError("Step has no saved content to submit")
	}
	if err != nil {
		return StepView{}, err
	}
	if doc.IsSubmitted {
		return StepView{}, conflictError("Step is already submitted")
	}

	if err := s.store.SetStepSubmitted(ctx, projectID, stepNumber, true, session.UserID); err != nil {
		return StepView{}, err
	}
	s.afterStepChange(ctx, session, projectID, stepNumber, nil, notify.EventSubmitted)
	s.notifyMentors(ctx, projectID, def.Name)

	view, err := s.LoadStep(ctx, session, projectID, stepNumber)
	if err != nil {
		return StepView{}, err
	}
	view.IsSubmitted = true
	return view, nil
}

// WithdrawStep lifts the read-only freeze so the step can be edited again.
func (s *Service) WithdrawStep(ctx context.Context, session Session, projectID string, stepNumber int, acknowledged bool) (StepView, error) {
	if _, err := stepDefinition(stepNumber); err != nil {
		return StepView{}, err
	}
	if !acknowledged {
		return StepView{}, validationError("withdrawal requires acknowledging the review reset", nil)
	}
	if _, err := s.requireAction(ctx, session, projectID, access.ActionSubmit); err != nil {
		return StepView{}, err
	}

	doc, err := s.store.GetStepDocument(ctx, projectID, stepNumber)
	if errors.Is(err, store.ErrNotFound) {
		return StepView{}, conflictError("Step has never been submitted")
	}
	if err != nil {
		return StepView{}, err
	}
	if !doc.IsSubmitted {
		return StepView{}, conflictError("Step is not submitted")
	}

	if err := s.store.SetStepSubmitted(ctx, projectID, stepNumber, false, session.UserID); err != nil {
		return StepView{}, err
	}
	s.afterStepChange(ctx, session, projectID, stepNumber, nil, notify.EventWithdrawn)

	view, err := s.LoadStep(ctx, session, projectID, stepNumber)
	if err != nil {
		return StepView{}, err
	}
	view.IsSubmitted = false
	return view, nil
}

func (s *Service) notifyMentors(ctx context.Context, projectID, stepName string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return
	}
	reviewURL := fmt.Sprintf("%s/projects/%s", s.cfg.AppBaseURL, projectID)
	for _, member := range members {
		if access.Normalize(member.Role) != access.RoleMentor || member.UserEmail == "" {
			continue
		}
		go func(to, name string) {
			if err := s.email.SendSubmissionEmail(to, name, project.Name, stepName, reviewURL); err != nil {
				log.Printf("submit %s: notify mentor %s: %v", projectID, to, err)
			}
		}(member.UserEmail, member.UserName)
	}
}

// --- progress and references ---

func (s *Service) ProjectProgress(ctx context.Context, session Session, projectID string) (ProjectProgressView, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return ProjectProgressView{}, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return ProjectProgressView{}, notFoundError("Project not found")
	}
	if err != nil {
		return ProjectProgressView{}, err
	}
	docs, err := s.store.ListStepDocuments(ctx, projectID)
	if err != nil {
		return ProjectProgressView{}, err
	}
	byNumber := make(map[int]*store.StepDocument, len(docs))
	for _, doc := range docs {
		byNumber[doc.StepNumber] = doc
	}

	view := ProjectProgressView{
		ProjectID:   projectID,
		CurrentStep: project.CurrentStep,
	}
	sum := 0
	for _, def := range schema.Steps() {
		row := StepProgress{StepNumber: def.Number, StepName: def.Name}
		if doc, ok := byNumber[def.Number]; ok {
			row.Started = true
			row.IsSubmitted = doc.IsSubmitted
			row.Progress = doc.Progress
			sum += doc.Progress
		}
		view.Steps = append(view.Steps, row)
	}
	view.ProgressRate = int(math.Round(float64(sum) / float64(schema.TotalSteps())))
	return view, nil
}

// ResolveStepRef reads a value from another step's migrated payload by
// dotted path, returning the fallback when the path is missing or empty.
// Later steps use this to pull facts captured earlier without copying them.
func (s *Service) ResolveStepRef(ctx context.Context, session Session, projectID string, stepNumber int, path string, fallback any) (any, error) {
	if path == "" {
		return nil, validationError("path is required", nil)
	}
	view, err := s.LoadStep(ctx, session, projectID, stepNumber)
	if err != nil {
		return nil, err
	}
	payload, err := schema.ParsePayload(view.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode step payload: %w", err)
	}
	value, ok := payload.Lookup(path)
	if !ok || schema.IsEmptyValue(value) {
		return fallback, nil
	}
	return value, nil
}

// --- history ---

func (s *Service) StepHistory(ctx context.Context, session Session, projectID string, stepNumber, limit int) ([]history.CommitInfo, error) {
	if _, err := stepDefinition(stepNumber); err != nil {
		return nil, err
	}
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.StepHistory(ctx, projectID, stepNumber, limit)
}

func (s *Service) StepSnapshotAt(ctx context.Context, session Session, projectID string, stepNumber int, hash string) (json.RawMessage, error) {
	if _, err := stepDefinition(stepNumber); err != nil {
		return nil, err
	}
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, notFoundError("History not configured")
	}
	raw, err := s.history.StepSnapshot(ctx, projectID, stepNumber, hash)
	if err != nil {
		return nil, notFoundError("Snapshot not found")
	}
	return raw, nil
}

// --- credits ---

func (s *Service) CreditSummary(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	balance, err := s.store.CreditBalance(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("Project not found")
	}
	if err != nil {
		return nil, err
	}
	charges, err := s.store.ListCharges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if charges == nil {
		charges = []*store.CreditCharge{}
	}
	return map[string]any{
		"balance":  balance,
		"stepCost": s.gate.Cost(),
		"charges":  charges,
	}, nil
}

// --- realtime ---

// SubscribeSteps opens the change feed for a project. stepNumber 0 follows
// every step.
func (s *Service) SubscribeSteps(ctx context.Context, session Session, projectID string, stepNumber int) (*notify.Subscription, error) {
	if _, err := s.requireAction(ctx, session, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	if s.notifier == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Realtime updates not configured", nil)
	}
	return s.notifier.Subscribe(ctx, projectID, stepNumber)
}

// Bootstrap runs startup work that needs the full stack: reindexing search
// from Postgres when Meilisearch came back empty.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
}
