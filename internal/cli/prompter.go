package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
)

// ErrQuit is returned when the user stops a review early.
var ErrQuit = errors.New("review stopped")

// Resolver is the part of the message processor a review needs.
type Resolver interface {
	Pending() []model.PendingMessage
	Suggest(item model.PendingMessage) engine.Suggestion
	Learn(ctx context.Context, pendingID string, c engine.Confirmation) (engine.ResolveResult, error)
	Dismiss(id string) bool
}

// ReviewStats counts what a review did.
type ReviewStats struct {
	Resolved  int
	Dismissed int
	Skipped   int
}

// Prompter walks the user through pending messages on a terminal.
type Prompter struct {
	writer      io.Writer
	reader      *NonBlockingReader
	progressBar *progressbar.ProgressBar
	categories  []model.Category
	methods     []model.Method
	stats       ReviewStats
	startTime   time.Time
	showBar     bool
}

// NewCLIPrompter creates a prompter reading answers from reader.
func NewCLIPrompter(reader io.Reader, writer io.Writer, categories []model.Category, methods []model.Method) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader:     NewNonBlockingReader(reader),
		writer:     writer,
		categories: categories,
		methods:    methods,
		startTime:  time.Now(),
	}
}

// WithProgress shows a progress bar across the review.
func (p *Prompter) WithProgress() *Prompter {
	p.showBar = true
	return p
}

// Review asks about every item currently pending in r. It stops early with
// ErrQuit when the user quits and with the context error on cancellation.
func (p *Prompter) Review(ctx context.Context, r Resolver) (ReviewStats, error) {
	items := r.Pending()
	if len(items) == 0 {
		p.println(FormatInfo("没有待确认的消息"))
		return p.stats, nil
	}
	if p.showBar {
		p.progressBar = progressbar.NewOptions(len(items),
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionSetDescription("待确认"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}
		if err := p.reviewItem(ctx, r, item, i+1, len(items)); err != nil {
			return p.stats, err
		}
		if p.progressBar != nil {
			_ = p.progressBar.Add(1)
		}
	}
	return p.stats, nil
}

func (p *Prompter) reviewItem(ctx context.Context, r Resolver, item model.PendingMessage, index, total int) error {
	suggestion := r.Suggest(item)
	p.println(RenderBox(fmt.Sprintf("待确认 %d/%d", index, total), p.formatItem(item, suggestion)))

	complete := suggestion.Amount != nil && suggestion.CategoryID != nil && suggestion.MethodID != nil
	choices := []string{"e", "d", "s", "q"}
	if complete {
		p.printf("  [A] 按建议记账: %s\n", SuccessStyle.Render(p.describe(suggestion)))
		choices = append(choices, "a")
	}
	p.println("  [E] 填写并学习规则")
	p.println("  [D] 忽略此消息")
	p.println("  [S] 稍后处理")
	p.println("  [Q] 退出")

	// Edits survive a rejected confirmation and become the next defaults.
	defaults := suggestion
	for {
		choice, err := p.promptChoice(ctx, "选择", choices)
		if err != nil {
			return err
		}

		switch choice {
		case "a":
			c := engine.Confirmation{
				CardID:     suggestion.CardID,
				Keywords:   suggestion.Keywords,
				Type:       suggestion.Type,
				Amount:     *suggestion.Amount,
				CategoryID: *suggestion.CategoryID,
				MethodID:   *suggestion.MethodID,
			}
			if done, err := p.learn(ctx, r, item, c); err != nil || done {
				return err
			}
		case "e":
			c, err := p.promptConfirmation(ctx, defaults)
			if err != nil {
				return err
			}
			if done, err := p.learn(ctx, r, item, c); err != nil || done {
				return err
			}
			defaults = suggestionFrom(c)
		case "d":
			if r.Dismiss(item.ID) {
				p.stats.Dismissed++
				p.println(FormatSuccess("已忽略"))
			}
			return nil
		case "s":
			p.stats.Skipped++
			return nil
		case "q":
			return ErrQuit
		}
	}
}

// learn reports done=true when the item no longer needs attention. A
// rejected confirmation is shown and the item is asked about again.
func (p *Prompter) learn(ctx context.Context, r Resolver, item model.PendingMessage, c engine.Confirmation) (bool, error) {
	result, err := r.Learn(ctx, item.ID, c)
	if err != nil {
		msg := common.UserMessage(err)
		if msg == "" {
			msg = err.Error()
		}
		p.println(FormatError(msg))
		return false, nil
	}
	if !result.Applied {
		p.println(FormatWarning("该消息已被处理"))
		return true, nil
	}
	p.stats.Resolved++
	p.println(FormatSuccess(fmt.Sprintf("已记账 #%d，规则 #%d", result.TransactionID, result.RuleID)))
	return true, nil
}

func suggestionFrom(c engine.Confirmation) engine.Suggestion {
	s := engine.Suggestion{
		Amount:   &c.Amount,
		CardID:   c.CardID,
		Keywords: c.Keywords,
		Type:     c.Type,
	}
	if c.CategoryID != 0 {
		s.CategoryID = &c.CategoryID
	}
	if c.MethodID != 0 {
		s.MethodID = &c.MethodID
	}
	return s
}

func (p *Prompter) promptConfirmation(ctx context.Context, s engine.Suggestion) (engine.Confirmation, error) {
	c := engine.Confirmation{Type: s.Type, CardID: s.CardID}

	amountDefault := ""
	if s.Amount != nil {
		amountDefault = strconv.FormatFloat(*s.Amount, 'f', -1, 64)
	}
	for {
		input, err := p.promptLine(ctx, "金额", amountDefault)
		if err != nil {
			return engine.Confirmation{}, err
		}
		amount, err := strconv.ParseFloat(input, 64)
		if err == nil {
			c.Amount = amount
			break
		}
		p.println(FormatError("请输入数字金额"))
	}

	for {
		input, err := p.promptLine(ctx, "类型 (expense/income)", string(s.Type))
		if err != nil {
			return engine.Confirmation{}, err
		}
		typ, err := model.ParseTransactionType(input)
		if err == nil {
			c.Type = typ
			break
		}
		p.println(FormatError("请选择收支类型"))
	}

	categoryID, err := p.promptPick(ctx, "分类", p.categoryOptions(c.Type), s.CategoryID)
	if err != nil {
		return engine.Confirmation{}, err
	}
	c.CategoryID = categoryID

	methodID, err := p.promptPick(ctx, "支付方式", p.methodOptions(), s.MethodID)
	if err != nil {
		return engine.Confirmation{}, err
	}
	c.MethodID = methodID

	keywords, err := p.promptLine(ctx, "关键词", s.Keywords)
	if err != nil {
		return engine.Confirmation{}, err
	}
	c.Keywords = keywords
	return c, nil
}

type option struct {
	label string
	id    int64
}

func (p *Prompter) categoryOptions(typ model.TransactionType) []option {
	var out []option
	for _, c := range p.categories {
		if c.Type == typ {
			out = append(out, option{id: c.ID, label: c.Name})
		}
	}
	return out
}

func (p *Prompter) methodOptions() []option {
	out := make([]option, 0, len(p.methods))
	for _, m := range p.methods {
		out = append(out, option{id: m.ID, label: m.Name})
	}
	return out
}

// promptPick lists options by number; an empty answer keeps current. It
// returns 0 when there is nothing to pick from, leaving validation to the
// processor.
func (p *Prompter) promptPick(ctx context.Context, label string, options []option, current *int64) (int64, error) {
	if len(options) == 0 {
		if current != nil {
			return *current, nil
		}
		return 0, nil
	}

	def := ""
	for i, o := range options {
		marker := " "
		if current != nil && *current == o.id {
			marker = "*"
			def = strconv.Itoa(i + 1)
		}
		p.printf("  %s%2d) %s\n", marker, i+1, o.label)
	}
	for {
		input, err := p.promptLine(ctx, label, def)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(input)
		if err == nil && n >= 1 && n <= len(options) {
			return options[n-1].id, nil
		}
		p.println(FormatError("无效的选项，请重试"))
	}
}

func (p *Prompter) promptLine(ctx context.Context, label, def string) (string, error) {
	prompt := label
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]", label, def)
	}
	p.printf("%s", FormatPrompt(prompt))

	input, err := p.reader.ReadLine(ctx)
	if err != nil {
		return "", inputError(err)
	}
	if input == "" {
		return def, nil
	}
	return input, nil
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		p.printf("%s", FormatPrompt(prompt))
		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", inputError(err)
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}
		p.println(FormatError("无效的选项，请重试"))
	}
}

func inputError(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return ErrQuit
	case errors.Is(err, ErrInputCancelled):
		return context.Canceled
	default:
		return err
	}
}

func (p *Prompter) formatItem(item model.PendingMessage, s engine.Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("来源:"), item.Channel)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("时间:"), item.ReceivedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s %s", BoldStyle.Render("内容:"), item.Text)
	if item.SuggestedRule != nil {
		fmt.Fprintf(&b, "\n%s %s", SubtleStyle.Render("部分匹配规则:"), item.SuggestedRule.Name)
	}
	if s.Amount != nil {
		fmt.Fprintf(&b, "\n%s %.2f", SubtleStyle.Render("识别金额:"), *s.Amount)
	}
	return b.String()
}

func (p *Prompter) describe(s engine.Suggestion) string {
	parts := []string{fmt.Sprintf("%.2f", *s.Amount), typeLabel(s.Type)}
	if name := p.categoryName(*s.CategoryID); name != "" {
		parts = append(parts, name)
	}
	if name := p.methodName(*s.MethodID); name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, " · ")
}

func (p *Prompter) categoryName(id int64) string {
	for _, c := range p.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (p *Prompter) methodName(id int64) string {
	for _, m := range p.methods {
		if m.ID == id {
			return m.Name
		}
	}
	return ""
}

func typeLabel(t model.TransactionType) string {
	if t == model.TransactionIncome {
		return "收入"
	}
	return "支出"
}

// ShowCompletion prints the review summary.
func (p *Prompter) ShowCompletion() {
	content := fmt.Sprintf("已记账: %d\n已忽略: %d\n稍后处理: %d\n用时: %s",
		p.stats.Resolved, p.stats.Dismissed, p.stats.Skipped, time.Since(p.startTime).Round(time.Second))
	p.println(RenderBox("处理完成", content))
}

// Stats returns what the review has done so far.
func (p *Prompter) Stats() ReviewStats {
	return p.stats
}

func (p *Prompter) println(a ...any) {
	if _, err := fmt.Fprintln(p.writer, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func (p *Prompter) printf(format string, a ...any) {
	if _, err := fmt.Fprintf(p.writer, format, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}
