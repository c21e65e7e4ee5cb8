package types

// OrderSide is the direction of an order or trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// PositionSide is the resolved direction of a futures position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeStopMarket      OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMkt   OrderType = "TAKE_PROFIT_MARKET"
	OrderTypeStop            OrderType = "STOP"
	OrderTypeTakeProfit      OrderType = "TAKE_PROFIT"
)

// OrderStatus is the raw exchange-reported order status, distinct from the
// core's own OrderState state machine (see statemachine.OrderState) — this
// is the vocabulary get_order_state_from_binance maps from.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// TimeInForce governs how long an order rests on the book.
type TimeInForce string

const (
	TIFGoodTilCancel  TimeInForce = "GTC"
	TIFImmediateOrKill TimeInForce = "IOC"
	TIFFillOrKill      TimeInForce = "FOK"
)

// EventSource names which collaborator produced an event.
type EventSource string

const (
	SourceWebSocket EventSource = "WEBSOCKET"
	SourceREST      EventSource = "REST"
	SourceBot       EventSource = "BOT"
	SourceWeb       EventSource = "WEB"
)

// EntityKind names the kind of domain entity an event's entity_id refers to.
type EntityKind string

const (
	EntityOrder    EntityKind = "ORDER"
	EntityTrade    EntityKind = "TRADE"
	EntityPosition EntityKind = "POSITION"
	EntityBalance  EntityKind = "BALANCE"
	EntityTransfer EntityKind = "TRANSFER"
	EntityEngine   EntityKind = "ENGINE"
	EntityConfig   EntityKind = "CONFIG"
)

// ActorKind names who or what caused an event, used for audit display.
type ActorKind string

const (
	ActorStrategy ActorKind = "STRATEGY"
	ActorUser     ActorKind = "USER"
	ActorSystem   ActorKind = "SYSTEM"
)

// Actor identifies the originator of a command or event.
type Actor struct {
	Kind ActorKind
	ID   string
}

// SystemActor returns the well-known system actor, used for events the core
// itself generates (reconciler, projector) rather than a human or strategy.
func SystemActor() Actor { return Actor{Kind: ActorSystem, ID: "system"} }

// StrategyActor returns an Actor for a named strategy.
func StrategyActor(name string) Actor { return Actor{Kind: ActorStrategy, ID: name} }

// UserActor returns an Actor for a named human operator.
func UserActor(name string) Actor { return Actor{Kind: ActorUser, ID: name} }
