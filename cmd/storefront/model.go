package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yungbote/storefront-cart/internal/cart/interaction"
	"github.com/yungbote/storefront-cart/internal/cart/projection"
	"github.com/yungbote/storefront-cart/internal/cart/store"
	"github.com/yungbote/storefront-cart/internal/catalog"
	"github.com/yungbote/storefront-cart/internal/domain/cart"
)

type page int

const (
	pageProducts page = iota
	pageCart
)

type (
	badgeMsg       projection.BadgeView
	itemsMsg       projection.LineItemsView
	buttonMsg      interaction.State
	openRequestMsg struct{}
	mutationMsg    struct{ err error }
	mountedMsg     struct{}
)

// fragments groups the independently mounted views of the storefront. Each
// one talks to the cart only through the store.
type fragments struct {
	badge  *projection.Badge
	items  *projection.LineItems
	button *interaction.AddToCart
	unsub  func()
}

type model struct {
	ctx      context.Context
	store    *store.Store
	products []catalog.Product
	frag     fragments

	page     page
	cursor   int
	lineCur  int
	badge    projection.BadgeView
	items    projection.LineItemsView
	button   interaction.State
	quantity int
	status   string
}

// newModel wires the fragments; send delivers their updates to the program.
func newModel(ctx context.Context, st *store.Store, products []catalog.Product, send func(tea.Msg)) model {
	frag := fragments{
		badge: projection.NewBadge(st, func(v projection.BadgeView) { send(badgeMsg(v)) }),
		items: projection.NewLineItems(st, func(v projection.LineItemsView) { send(itemsMsg(v)) }),
		button: interaction.NewAddToCart(st,
			interaction.WithObserver(func(s interaction.State) { send(buttonMsg(s)) }),
		),
	}
	frag.unsub = st.SubscribeOpen(func() { send(openRequestMsg{}) })
	return model{
		ctx:      ctx,
		store:    st,
		products: products,
		frag:     frag,
		quantity: 1,
		status:   "Ready",
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		m.frag.badge.Mount(m.ctx)
		m.frag.items.Mount(m.ctx)
		return mountedMsg{}
	}
}

func (m model) unmount() {
	m.frag.badge.Unmount()
	m.frag.items.Unmount()
	if m.frag.unsub != nil {
		m.frag.unsub()
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.onKey(msg)
	case badgeMsg:
		m.badge = projection.BadgeView(msg)
	case itemsMsg:
		m.items = projection.LineItemsView(msg)
		if m.lineCur >= len(m.items.Items) {
			m.lineCur = max(len(m.items.Items)-1, 0)
		}
	case buttonMsg:
		m.button = interaction.State(msg)
	case openRequestMsg:
		m.page = pageCart
	case mutationMsg:
		if msg.err != nil {
			m.status = "Cart update failed: " + msg.err.Error()
		} else {
			m.status = "Ready"
		}
	case mountedMsg:
		m.status = "Ready"
	}
	return m, nil
}

func (m model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.unmount()
		return m, tea.Quit
	case "tab":
		if m.page == pageProducts {
			m.page = pageCart
		} else {
			m.page = pageProducts
		}
		return m, nil
	case "b":
		// the header badge asks the panel to open
		return m, func() tea.Msg { m.store.RequestOpen(); return nil }
	}
	if m.page == pageProducts {
		return m.onProductKey(msg)
	}
	return m.onCartKey(msg)
}

func (m model) onProductKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.products)-1 {
			m.cursor++
		}
	case "+", "=":
		m.quantity++
	case "-":
		if m.quantity > 1 {
			m.quantity--
		}
	case "enter", "a":
		if len(m.products) == 0 {
			return m, nil
		}
		p := m.products[m.cursor]
		qty := m.quantity
		btn := m.frag.button
		ctx := m.ctx
		// Outcomes arrive through the button's observer; a busy button
		// ignores the press.
		return m, func() tea.Msg {
			_ = btn.Submit(ctx, interaction.Product{ID: p.ID, Snapshot: p.Snapshot()}, qty)
			return nil
		}
	}
	return m, nil
}

func (m model) onCartKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lines := m.items.Items
	switch msg.String() {
	case "up", "k":
		if m.lineCur > 0 {
			m.lineCur--
		}
		return m, nil
	case "down", "j":
		if m.lineCur < len(lines)-1 {
			m.lineCur++
		}
		return m, nil
	case "c":
		return m, m.mutate(func(ctx context.Context) error {
			_, err := m.store.Clear(ctx)
			return err
		})
	case "o":
		open := !m.items.Open
		return m, m.mutate(func(ctx context.Context) error {
			_, err := m.store.SetPanelOpen(ctx, open)
			return err
		})
	}
	if len(lines) == 0 {
		return m, nil
	}
	line := lines[m.lineCur]
	switch msg.String() {
	case "+", "=":
		return m, m.mutate(func(ctx context.Context) error {
			_, err := m.store.SetQuantity(ctx, line.ProductID, line.Quantity+1)
			return err
		})
	case "-":
		return m, m.mutate(func(ctx context.Context) error {
			_, err := m.store.SetQuantity(ctx, line.ProductID, line.Quantity-1)
			return err
		})
	case "d", "backspace", "delete":
		return m, m.mutate(func(ctx context.Context) error {
			_, err := m.store.RemoveItem(ctx, line.ProductID)
			return err
		})
	}
	return m, nil
}

func (m model) mutate(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := fn(ctx)
		var verr *cart.ValidationError
		if errors.As(err, &verr) {
			err = nil
		}
		return mutationMsg{err: err}
	}
}

func (m model) View() string {
	b := &strings.Builder{}
	badge := "cart"
	if m.badge.Visible {
		badge = fmt.Sprintf("cart (%s)", m.badge.Label)
	}
	fmt.Fprintf(b, "storefront%s[%s]\n\n", strings.Repeat(" ", 40), badge)

	if m.page == pageProducts {
		m.viewProducts(b)
	} else {
		m.viewCart(b)
	}

	if n := m.button.Notice; n != nil {
		fmt.Fprintf(b, "\n>> %s\n", n.Message)
	}
	fmt.Fprintf(b, "\nStatus: %s\n", m.status)
	return b.String()
}

func (m model) viewProducts(b *strings.Builder) {
	fmt.Fprintln(b, "Products:")
	for i, p := range m.products {
		marker := " "
		if i == m.cursor {
			marker = ">"
		}
		label := ""
		if i == m.cursor && m.button.Phase == interaction.Submitting {
			label = "  adding..."
		}
		fmt.Fprintf(b, " %s %-28s %14s%s\n", marker, p.Name, projection.FormatIDR(p.Price), label)
	}
	fmt.Fprintf(b, "\nQuantity: %d\n", m.quantity)
	fmt.Fprintln(b, "\nControls: up/down select, +/- quantity, enter add to cart, tab cart, b open cart, q quit")
}

func (m model) viewCart(b *strings.Builder) {
	panel := "closed"
	if m.items.Open {
		panel = "open"
	}
	fmt.Fprintf(b, "Cart (panel %s):\n", panel)
	if len(m.items.Items) == 0 {
		fmt.Fprintln(b, "  Your cart is empty")
	}
	for i, it := range m.items.Items {
		marker := " "
		if i == m.lineCur {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %-28s %3d x %12s = %14s\n", marker, it.Name, it.Quantity, it.UnitPriceText, it.SubtotalText)
	}
	fmt.Fprintf(b, "\n  Items: %d   Total: %s\n", m.items.TotalCount, m.items.TotalText)
	fmt.Fprintln(b, "\nControls: up/down select, +/- quantity, d remove, c clear, o toggle panel, tab products, q quit")
}
