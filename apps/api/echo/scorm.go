package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type (
	runtimeApi struct {
		svc        scorm.ServiceInterface
		validate   *validator.Validate
		translator ut.Translator
	}

	InitializeResponse struct {
		Success          bool            `json:"success"`
		Initialized      bool            `json:"initialized"`
		Standard         scorm.Standard  `json:"standard"`
		HasExistingState bool            `json:"hasExistingState"`
		EntryMode        scorm.EntryMode `json:"entryMode"`
	}

	GetValueResponse struct {
		Value string `json:"value"`
	}

	SetValueResponse struct {
		Success bool `json:"success"`
	}

	CommitResponse struct {
		Success   bool `json:"success"`
		Committed bool `json:"committed"`
	}

	TerminateResponse struct {
		Success    bool `json:"success"`
		Terminated bool `json:"terminated"`
	}

	StateResponse struct {
		Runtime    *scorm.RuntimeRecord `json:"runtime"`
		CanResume  bool                 `json:"canResume"`
		LastAccess null.Time            `json:"lastAccess"`
		Session    *scorm.SessionInfo   `json:"session,omitempty"`
	}
)

func registerRuntimeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc scorm.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := runtimeApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	sg := g.Group("/scorm")
	// the request body is validated before the learner is authenticated
	sg.POST("/runtime", api.dispatch, api.bindRequest, jwt)
}

const requestContextKey = "runtimeRequest"

// Middlewares

func (api *runtimeApi) bindRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := new(scorm.Request)
		if err := ctx.Bind(req); err != nil {
			return errors.Wrap(err, "binding to scorm.Request")
		}
		if err := req.Validate(api.validate); err != nil {
			return err
		}
		ctx.Set(requestContextKey, req)
		return next(ctx)
	}
}

func getContextRequest(ctx echo.Context) (*scorm.Request, error) {
	req, ok := ctx.Get(requestContextKey).(*scorm.Request)
	if !ok {
		return nil, errors.New("runtime request not bound")
	}
	return req, nil
}

// Handlers

func (api *runtimeApi) dispatch(ctx echo.Context) error {
	learner, err := getContextLearner(ctx)
	if err != nil {
		return err
	}

	req, err := getContextRequest(ctx)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	key := req.Key()

	switch req.Action {
	case scorm.ActionInitialize:
		res, err := api.svc.Initialize(rctx, key, learner)
		if err != nil {
			return errors.Wrap(err, "initializing session")
		}
		return ctx.JSON(http.StatusOK, InitializeResponse{
			Success:          true,
			Initialized:      true,
			Standard:         res.Standard,
			HasExistingState: res.HasExistingState,
			EntryMode:        res.EntryMode,
		})

	case scorm.ActionGetValue:
		val, err := api.svc.GetValue(rctx, key, learner, req.Element)
		if err != nil {
			return errors.Wrap(err, "getting value")
		}
		return ctx.JSON(http.StatusOK, GetValueResponse{Value: val})

	case scorm.ActionSetValue:
		if err := api.svc.SetValue(rctx, key, learner, req.Element, req.Value.String()); err != nil {
			return errors.Wrap(err, "setting value")
		}
		return ctx.JSON(http.StatusOK, SetValueResponse{Success: true})

	case scorm.ActionCommit:
		if err := api.svc.Commit(rctx, key, learner, req.CMIData); err != nil {
			return errors.Wrap(err, "committing")
		}
		return ctx.JSON(http.StatusOK, CommitResponse{Success: true, Committed: true})

	case scorm.ActionTerminate:
		if err := api.svc.Terminate(rctx, key, learner); err != nil {
			return errors.Wrap(err, "terminating")
		}
		return ctx.JSON(http.StatusOK, TerminateResponse{Success: true, Terminated: true})

	case scorm.ActionState:
		st, err := api.svc.State(rctx, key, learner)
		if err != nil {
			return errors.Wrap(err, "getting state")
		}
		return ctx.JSON(http.StatusOK, StateResponse{
			Runtime:    st.Runtime,
			CanResume:  st.CanResume,
			LastAccess: st.LastAccess,
			Session:    st.Session,
		})

	default:
		return core.NewValidationError(errors.Errorf("Unknown action: %s", req.Action))
	}
}
