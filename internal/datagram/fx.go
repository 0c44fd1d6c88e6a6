package datagram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("datagram.server",
	fx.Provide(NewServer),
	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, srv *Server, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if _, err := srv.Listen(); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				if err := srv.Serve(ctx); err != nil {
					log.Error("udp listener stopped", zap.Error(err))
				}
			}()

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return srv.Close()
				},
			})
			return nil
		},
	})
}
