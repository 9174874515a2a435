package router

import (
	"context"
	"log/slog"
	"sync"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/pkg/logger"
)

// Domain 是路由的目标业务域。
type Domain string

const (
	DomainBanking     Domain = "banking"
	DomainCards       Domain = "cards"
	DomainInvestments Domain = "investments"
	DomainMoney       Domain = "money"
	DomainAdvisor     Domain = "advisor"
	DomainTransfer    Domain = "transfer"
	DomainGeneral     Domain = "general"
	DomainOutOfScope  Domain = "out_of_scope"
)

// Request 是一次经过路由的领域调用。Context 携带此前步骤的输出，
// Parameters 携带意图解析阶段抽取的槽位。
type Request struct {
	UserID     string
	Domain     Domain
	Query      string
	Context    []string
	Parameters map[string]string
}

// Result 是领域处理器的响应。OutOfScope 为 true 时 Summary 是拒绝说明。
type Result struct {
	Domain     Domain
	Summary    string
	OutOfScope bool
}

// Handler 处理某个业务域内的请求。
type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc 让普通函数充当 Handler。
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

// Handle 实现 Handler 接口。
func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

const CodeDuplicateHandler xerrors.Code = "DUPLICATE_HANDLER"

func init() {
	xerrors.Register(CodeDuplicateHandler, xerrors.Attributes{
		Message:   "domain handler already registered",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// Router 按业务域把请求分发给注册的处理器。
// 未注册的业务域返回明确的超范围结果，而不是猜测一个处理器。
type Router struct {
	mu       sync.RWMutex
	handlers map[Domain]Handler
	logger   *slog.Logger
}

// New 创建空路由表。
func New() *Router {
	return &Router{
		handlers: make(map[Domain]Handler),
		logger:   logger.Named("router"),
	}
}

// Register 注册业务域处理器。重复注册同一业务域是配置错误。
func (r *Router) Register(domain Domain, handler Handler) error {
	if handler == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "处理器不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[domain]; exists {
		return xerrors.New(CodeDuplicateHandler, "业务域已注册: "+string(domain))
	}
	r.handlers[domain] = handler
	return nil
}

// Domains 返回当前已注册的业务域，仅用于诊断。
func (r *Router) Domains() []Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	domains := make([]Domain, 0, len(r.handlers))
	for d := range r.handlers {
		domains = append(domains, d)
	}
	return domains
}

// Dispatch 路由一次领域调用。
func (r *Router) Dispatch(ctx context.Context, req Request) (Result, error) {
	r.mu.RLock()
	handler, ok := r.handlers[req.Domain]
	r.mu.RUnlock()
	if !ok || req.Domain == DomainOutOfScope {
		r.logger.Info("请求超出可服务范围",
			slog.String("domain", string(req.Domain)),
			slog.String("user_id", req.UserID),
		)
		return Result{
			Domain:     DomainOutOfScope,
			OutOfScope: true,
			Summary:    "该请求不在网银助手可办理的业务范围内。",
		}, nil
	}
	return handler.Handle(ctx, req)
}
