package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"solver_gateway/bookkeeping"
	"solver_gateway/cache"
	"solver_gateway/embedding"
	"solver_gateway/errs"
	"solver_gateway/generation"
	"solver_gateway/identity"
	"solver_gateway/logger"
	"solver_gateway/metrics"
	"solver_gateway/quota"
)

// matchLimit is the number of neighbours considered; only the best one is used.
const matchLimit = 1

// Stage names recorded on the stage duration histogram.
const (
	stageAuth     = "auth"
	stageQuota    = "quota"
	stageEmbed    = "embed"
	stageLookup   = "lookup"
	stageGenerate = "generate"
	stagePersist  = "persist"
)

// Bookkeeping task names.
const (
	TaskHitIncrement   = "hit_increment"
	TaskUsageIncrement = "usage_increment"
)

// Dispatcher runs fire-and-forget writes. *bookkeeping.Pool satisfies it.
type Dispatcher interface {
	Submit(task bookkeeping.Task) bool
}

// Policy holds the tunable business rules of the answer path.
type Policy struct {
	SimilarityThreshold float32
	DailyFreeLimit      int
	UpstreamTimeout     time.Duration
	StoreTimeout        time.Duration
}

// Request is one question from a client. AccountID is optional; when set it
// must match the account the auth proof resolves to.
type Request struct {
	AccountID string
	Question  string
	AuthProof string
}

type Result struct {
	Answer string
	Cached bool
}

// Service composes identity, quota, embedding, similarity lookup and
// generation into the answer lifecycle. It holds no mutable state of its own.
type Service struct {
	resolver  identity.Resolver
	ledger    quota.Ledger
	embedder  embedding.Service
	store     cache.Store
	generator generation.Service
	tasks     Dispatcher
	metrics   *metrics.Metrics
	log       *slog.Logger
	policy    Policy
}

func New(
	resolver identity.Resolver,
	ledger quota.Ledger,
	embedder embedding.Service,
	store cache.Store,
	generator generation.Service,
	tasks Dispatcher,
	m *metrics.Metrics,
	log *slog.Logger,
	policy Policy,
) *Service {
	return &Service{
		resolver:  resolver,
		ledger:    ledger,
		embedder:  embedder,
		store:     store,
		generator: generator,
		tasks:     tasks,
		metrics:   m,
		log:       log,
		policy:    policy,
	}
}

// AnswerQuestion returns a cached answer for a sufficiently similar earlier
// question, or generates, persists and returns a fresh one. Failures carry
// an errs code; no partial answer is ever returned alongside an error.
func (s *Service) AnswerQuestion(ctx context.Context, req Request) (res Result, err error) {
	defer func() { s.metrics.Answer(outcome(res, err)) }()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, errs.New(errs.CodeInvalidInput, "question is empty")
	}

	accountID, err := s.authenticate(ctx, req)
	if err != nil {
		return Result{}, err
	}

	account, err := s.account(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	if account.Exceeded(s.policy.DailyFreeLimit) {
		s.log.Info("daily limit reached", "account_id", accountID, "asked", account.QuestionsAskedToday)
		return Result{}, errs.New(errs.CodeQuotaExceeded, "daily free limit reached",
			errs.FieldAccountID(accountID), errs.Field("limit", s.policy.DailyFreeLimit))
	}

	vector, err := s.embed(ctx, question)
	if err != nil {
		return Result{}, err
	}

	match, found, err := s.lookup(ctx, vector)
	if err != nil {
		return Result{}, err
	}
	if found {
		s.log.Debug("cache hit", "record_id", match.ID, "score", match.Score, "account_id", accountID)
		s.bumpHit(match.ID)
		return Result{Answer: match.Answer, Cached: true}, nil
	}

	s.log.Debug("cache miss", "account_id", accountID, "question", logger.Preview(question, 80))
	answer, err := s.generate(ctx, question)
	if err != nil {
		return Result{}, err
	}

	s.persist(ctx, question, vector, answer)
	s.countUsage(accountID)

	return Result{Answer: answer, Cached: false}, nil
}

func (s *Service) authenticate(ctx context.Context, req Request) (string, error) {
	defer s.metrics.ObserveStage(stageAuth, time.Now())

	if req.AuthProof == "" {
		return "", errs.New(errs.CodeUnauthenticated, "missing auth proof")
	}
	accountID, err := s.resolver.Resolve(ctx, req.AuthProof)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeUnauthenticated, "resolving auth proof")
	}
	if req.AccountID != "" && req.AccountID != accountID {
		return "", errs.New(errs.CodeUnauthenticated, "account does not match auth proof",
			errs.FieldAccountID(req.AccountID))
	}
	return accountID, nil
}

func (s *Service) account(ctx context.Context, accountID string) (quota.Account, error) {
	defer s.metrics.ObserveStage(stageQuota, time.Now())

	callCtx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()

	account, err := s.ledger.GetAccount(callCtx, accountID)
	if err == nil {
		return account, nil
	}
	if errs.IsNotFound(err) {
		// A token for an account the ledger does not know is not a valid identity.
		return quota.Account{}, errs.New(errs.CodeUnauthenticated, "unknown account",
			errs.FieldAccountID(accountID))
	}
	return quota.Account{}, errs.Wrap(err, errs.CodeStoreUnavailable, "loading account",
		errs.FieldAccountID(accountID))
}

func (s *Service) embed(ctx context.Context, question string) ([]float32, error) {
	defer s.metrics.ObserveStage(stageEmbed, time.Now())

	callCtx, cancel := context.WithTimeout(ctx, s.policy.UpstreamTimeout)
	defer cancel()

	vector, err := s.embedder.Get(callCtx, question)
	if err != nil {
		return nil, errs.Upstream(err, errs.UpstreamEmbedding, "embedding question")
	}
	if len(vector) == 0 {
		return nil, errs.New(errs.CodeUpstreamUnavailable, "embedding response is empty",
			errs.FieldUpstream(errs.UpstreamEmbedding))
	}
	return vector, nil
}

// lookup returns the single best match at or above the threshold. Ordering
// among equal scores is left to the store.
func (s *Service) lookup(ctx context.Context, vector []float32) (cache.Match, bool, error) {
	defer s.metrics.ObserveStage(stageLookup, time.Now())

	callCtx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()

	matches, err := s.store.FindSimilar(callCtx, vector, s.policy.SimilarityThreshold, matchLimit)
	if err != nil {
		return cache.Match{}, false, errs.Wrap(err, errs.CodeStoreUnavailable, "finding similar question")
	}
	if len(matches) == 0 || matches[0].Score < s.policy.SimilarityThreshold {
		return cache.Match{}, false, nil
	}
	return matches[0], true, nil
}

func (s *Service) generate(ctx context.Context, question string) (string, error) {
	defer s.metrics.ObserveStage(stageGenerate, time.Now())

	callCtx, cancel := context.WithTimeout(ctx, s.policy.UpstreamTimeout)
	defer cancel()

	answer, err := s.generator.Generate(callCtx, question)
	if err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "generating answer")
	}
	if answer == "" {
		return "", errs.New(errs.CodeUpstreamUnavailable, "generation returned no answer",
			errs.FieldUpstream(errs.UpstreamGeneration))
	}
	return answer, nil
}

// persist stores the fresh answer. A failure costs only a future cache hit,
// so it is logged and counted but never returned.
func (s *Service) persist(ctx context.Context, question string, vector []float32, answer string) {
	defer s.metrics.ObserveStage(stagePersist, time.Now())

	// The answer is already paid for: do not let a client disconnect drop it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.StoreTimeout)
	defer cancel()

	id, err := s.store.Insert(callCtx, cache.CachedQuestion{
		QuestionText: question,
		Embedding:    vector,
		Answer:       answer,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		s.metrics.CacheInsertFailures.Inc()
		s.log.Error("failed to cache answer", "error", err, "question", logger.Preview(question, 80))
		return
	}
	s.log.Debug("cached answer", "record_id", id)
}

func (s *Service) bumpHit(recordID string) {
	s.tasks.Submit(bookkeeping.Task{
		Name:  TaskHitIncrement,
		Attrs: []any{"record_id", recordID},
		Run: func(ctx context.Context) error {
			return s.store.IncrementHit(ctx, recordID)
		},
	})
}

func (s *Service) countUsage(accountID string) {
	s.tasks.Submit(bookkeeping.Task{
		Name:  TaskUsageIncrement,
		Attrs: []any{"account_id", accountID},
		Run: func(ctx context.Context) error {
			return s.ledger.IncrementUsage(ctx, accountID)
		},
	})
}

func outcome(res Result, err error) string {
	switch {
	case err == nil && res.Cached:
		return metrics.OutcomeHit
	case err == nil:
		return metrics.OutcomeMiss
	case errs.IsInvalidInput(err):
		return metrics.OutcomeInvalid
	case errs.IsUnauthenticated(err), errs.IsNotFound(err):
		return metrics.OutcomeUnauthenticated
	case errs.IsQuotaExceeded(err):
		return metrics.OutcomeQuotaExceeded
	default:
		return metrics.OutcomeError
	}
}
