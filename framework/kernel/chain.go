package kernel

import (
	"context"

	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/routing"
)

// chain executes mw in order, ending at action. Every step is guarded: an
// error or panic is rendered right there and the rendered response becomes
// the step's result, so next() never fails. Once a step returns the upgrade
// sentinel no further step runs and every next() yields the sentinel.
func (d *dispatch) chain(ctx context.Context, mw []routing.Middleware, action routing.Action) *gohttp.Response {
	var step func(i int) (*gohttp.Response, error)
	step = func(i int) (*gohttp.Response, error) {
		if d.upgraded {
			return gohttp.Upgraded, nil
		}

		var res *gohttp.Response
		err := protect(func() (err error) {
			if i == len(mw) {
				res, err = action.Handle(ctx, d.s)
				return err
			}
			res, err = mw[i](ctx, d.s, func() (*gohttp.Response, error) { return step(i + 1) })
			return err
		})

		switch {
		case d.upgraded:
			return gohttp.Upgraded, nil
		case err != nil:
			res = d.render(ctx, err)
		case gohttp.IsUpgraded(res):
			d.upgraded = true
		case res == nil:
			res = gohttp.NoContent()
		}
		return res, nil
	}

	res, _ := step(0)
	return res
}
