package echoapi

import (
	"bytes"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
)

var (
	orderingParam = "ordering"
	formatParam   = "format"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type validatable interface {
	Validate(validate *validator.Validate) error
}

// bindValid binds the request body into in, then validates it.
func bindValid(ctx echo.Context, validate *validator.Validate, in validatable, name string) error {
	if err := ctx.Bind(in); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return in.Validate(validate)
}

// exportFormat reads the "format" query param; csv by default.
func exportFormat(ctx echo.Context, allowJSON bool) (string, error) {
	format := strings.ToLower(strings.TrimSpace(ctx.QueryParam(formatParam)))
	switch format {
	case "":
		return core.ExportCSV, nil
	case core.ExportCSV, core.ExportXLSX:
		return format, nil
	case core.ExportJSON:
		if allowJSON {
			return format, nil
		}
	}
	return "", core.ErrInvalidFormat
}

// sendTable writes tbl as an attachment named after the table.
func sendTable(ctx echo.Context, tbl *core.Table, format string) error {
	var buf bytes.Buffer
	if err := tbl.Write(&buf, format); err != nil {
		return errors.Wrap(err, "writing export")
	}
	name := tbl.Name
	if name == "" {
		name = "export"
	}
	filename := name + "_" + time.Now().Format("20060102") + "." + format
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, core.ContentType(format), buf.Bytes())
}

// listJSON sends a JSON list, never null.
func listJSON(ctx echo.Context, code int, list interface{}) error {
	if v := reflect.ValueOf(list); v.Kind() == reflect.Slice && v.IsNil() {
		list = []struct{}{}
	}
	return ctx.JSON(code, list)
}

func queryInt(ctx echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(ctx.QueryParam(name)); err == nil {
		return n
	}
	return def
}

func queryBool(ctx echo.Context, name string) bool {
	b, _ := strconv.ParseBool(ctx.QueryParam(name))
	return b
}

// queryDate parses a YYYY-MM-DD query param; today (UTC) when missing.
func queryDate(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewFieldError(name, "Invalid date, expected YYYY-MM-DD")
	}
	return day, nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
