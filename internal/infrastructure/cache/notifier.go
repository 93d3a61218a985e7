package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const dirtyChannel = "stock:dirty"

// Notifier difunde entre procesos qué organizaciones tienen operaciones nuevas.
// La API publica tras cada append; el worker escucha y las refresca primero.
type Notifier struct {
	client *redis.Client
	log    *logger.Logger
}

// NewNotifier construye el notificador.
func NewNotifier(client *redis.Client, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{client: client, log: log.Component("stock_notifier")}
}

// Invalidate publica la organización en el canal; un fallo solo se registra.
func (n *Notifier) Invalidate(ctx context.Context, organizationID string) {
	if err := n.client.Publish(ctx, dirtyChannel, organizationID).Err(); err != nil {
		n.log.Warn().Err(err).Str("organization_id", organizationID).Msg("no se pudo publicar invalidación")
	}
}

// Listen se suscribe al canal y llama a fn por cada organización recibida hasta que ctx se cancele.
// Retorna cuando la suscripción está activa.
func (n *Notifier) Listen(ctx context.Context, fn func(ctx context.Context, organizationID string)) error {
	pubsub := n.client.Subscribe(ctx, dirtyChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != "" {
					fn(ctx, msg.Payload)
				}
			}
		}
	}()
	return nil
}
