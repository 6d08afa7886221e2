package transport

import (
	"context"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/vrc20"
)

// Instance exposes the catalog as typed calls over a Client.
type Instance struct {
	client *Client
}

func NewInstance(client *Client) *Instance {
	return &Instance{client: client}
}

func call[T any](ctx context.Context, c *Client, req vrc20.Request, decode func(vrc20.Response) (T, error)) (T, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode(resp)
}

func (i *Instance) Name(ctx context.Context) (string, error) {
	return call(ctx, i.client, vrc20.NewNameRequest(), vrc20.Response.Name)
}

func (i *Instance) Symbol(ctx context.Context) (string, error) {
	return call(ctx, i.client, vrc20.NewSymbolRequest(), vrc20.Response.Symbol)
}

func (i *Instance) Decimals(ctx context.Context) (uint8, error) {
	return call(ctx, i.client, vrc20.NewDecimalsRequest(), vrc20.Response.Decimals)
}

func (i *Instance) TotalSupply(ctx context.Context) (codec.U256, error) {
	return call(ctx, i.client, vrc20.NewTotalSupplyRequest(), vrc20.Response.TotalSupply)
}

func (i *Instance) BalanceOf(ctx context.Context, owner codec.Address) (codec.U256, error) {
	return call(ctx, i.client, vrc20.NewBalanceOfRequest(owner), vrc20.Response.BalanceOf)
}

func (i *Instance) Transfer(ctx context.Context, to codec.Address, value codec.U256) (bool, error) {
	return call(ctx, i.client, vrc20.NewTransferRequest(to, value), vrc20.Response.Transfer)
}

func (i *Instance) TransferFrom(ctx context.Context, from, to codec.Address, value codec.U256) (bool, error) {
	return call(ctx, i.client, vrc20.NewTransferFromRequest(from, to, value), vrc20.Response.TransferFrom)
}

func (i *Instance) Approve(ctx context.Context, spender codec.Address, value codec.U256) (bool, error) {
	return call(ctx, i.client, vrc20.NewApproveRequest(spender, value), vrc20.Response.Approve)
}

func (i *Instance) Allowance(ctx context.Context, owner, spender codec.Address) (codec.U256, error) {
	return call(ctx, i.client, vrc20.NewAllowanceRequest(owner, spender), vrc20.Response.Allowance)
}
