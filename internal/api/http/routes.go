package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/i474232898/plot-weather/internal/chart"
	"github.com/i474232898/plot-weather/internal/dateutil"
	"github.com/i474232898/plot-weather/internal/weather"
)

var validate = validator.New()

const (
	paramDevice     = "device_name"
	paramStartDay   = "start_day"
	paramBeforeDays = "before_days"
	paramYearMonth  = "year_month"

	deviceNameRule = "min=1,max=20"
	startDayRule   = "datetime=2006-01-02"
	beforeDaysRule = "oneof=1 2 3 7"
)

// Error responses carry "code,message" in status.message; codes 4xx-5xx
// below are application codes, not HTTP statuses.
var (
	errTokenMismatch      = apiError(fiber.StatusForbidden, 403, "Invalid token")
	errImageSizeRequired  = apiError(fiber.StatusBadRequest, 401, "phone image size required")
	errImageSizeInvalid   = apiError(fiber.StatusBadRequest, 402, "phone image size invalid")
	errDeviceRequired     = apiError(fiber.StatusBadRequest, 421, paramDevice+" required")
	errDeviceInvalid      = apiError(fiber.StatusBadRequest, 422, paramDevice+" invalid")
	errDeviceNotFound     = apiError(fiber.StatusBadRequest, 423, paramDevice+" not found")
	errStartDayInvalid    = apiError(fiber.StatusBadRequest, 431, paramStartDay+" invalid")
	errBeforeDaysRequired = apiError(fiber.StatusBadRequest, 433, paramBeforeDays+" required")
	errBeforeDaysInvalid  = apiError(fiber.StatusBadRequest, 434, paramBeforeDays+" invalid")
	errDatabase           = apiError(fiber.StatusInternalServerError, 559, "database error")
	errTooManyRequests    = apiError(fiber.StatusTooManyRequests, 429, "too many requests")
)

func apiError(status, code int, message string) *fiber.Error {
	return fiber.NewError(status, fmt.Sprintf("%d,%s", code, message))
}

// ImageRenderer turns tables into data URIs.
type ImageRenderer interface {
	Render(t *weather.Table, stat weather.TemperatureStat, phone *chart.PhoneImageSize) (string, error)
	RenderComparison(current, previous *weather.Table, phone *chart.PhoneImageSize) (string, error)
}

// Options configures the routes.
type Options struct {
	PhoneTokenHeader     string
	PhoneToken           string
	PhoneImageSizeHeader string
	// Timeout bounds the store work of one request; zero means no bound.
	Timeout time.Duration
	Debug   bool
	// Limiter throttles the /plot_weather group; nil disables it.
	Limiter *rate.Limiter
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

type handler struct {
	service  *weather.Service
	renderer ImageRenderer
	opts     Options
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, renderer ImageRenderer, opts Options) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handler{service: service, renderer: renderer, opts: opts}

	pw := app.Group("/plot_weather")
	if opts.Limiter != nil {
		pw.Use(RateLimit(opts.Limiter))
	}

	pw.Get("/get_devices", h.getDevices)
	pw.Get("/getyearmonthlistwithdevice/:device_name", h.getYearMonthList)
	pw.Get("/gettodayimage/:device_name", h.getTodayImage)
	pw.Get("/getmonthimage/:device_name/:year_month", h.getMonthImage)
	pw.Get("/getcompprevyearimage/:device_name/:year_month", h.getCompPrevYearImage)

	pw.Get("/getlastdataforphone", h.getLastDataForPhone)
	pw.Get("/getfirstregisterdayforphone", h.getFirstRegisterDayForPhone)
	pw.Get("/gettodayimageforphone", h.getTodayImageForPhone)
	pw.Get("/getbeforedaysimageforphone", h.getBeforeDaysImageForPhone)
}

// ErrorHandler renders every error as {"status":{"code":..,"message":..}}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"status": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

func (h *handler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.opts.Timeout > 0 {
		return context.WithTimeout(c.UserContext(), h.opts.Timeout)
	}
	return context.WithCancel(c.UserContext())
}

func (h *handler) debugf(format string, args ...any) {
	if h.opts.Debug {
		log.Printf("DEBUG: "+format, args...)
	}
}

// toHTTPError maps core errors onto API errors. Store failures are logged
// here and reported without detail.
func toHTTPError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, weather.ErrDataAccess):
		log.Printf("ERROR: %s: %v", c.Path(), err)
		return errDatabase
	case weather.IsClientError(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *handler) getDevices(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	devices, err := h.service.Devices(ctx)
	if err != nil {
		return toHTTPError(c, err)
	}
	return phoneOK(c, fiber.Map{"devices": devices})
}

func (h *handler) getYearMonthList(c *fiber.Ctx) error {
	device := c.Params(paramDevice)
	h.debugf("%s, %s: %s", c.Path(), paramDevice, device)

	ctx, cancel := h.context(c)
	defer cancel()

	months, err := h.service.GroupByMonth(ctx, device)
	if err != nil {
		return toHTTPError(c, err)
	}
	prevMonths, err := h.service.YearsWithPriorYearData(ctx, device)
	if err != nil {
		return toHTTPError(c, err)
	}

	c.Cookie(&fiber.Cookie{Name: paramDevice, Value: device})
	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"ymList":     months,
			"prevYmList": prevMonths,
		},
	})
}

// getTodayImage plots the device's current day, or its last registered day
// when nothing has arrived yet today.
func (h *handler) getTodayImage(c *fiber.Ctx) error {
	device := c.Params(paramDevice)
	h.debugf("%s, %s: %s", c.Path(), paramDevice, device)

	ctx, cancel := h.context(c)
	defer cancel()

	series, err := h.service.TodaySeries(ctx, device, h.opts.Now())
	if err != nil {
		return toHTTPError(c, err)
	}
	img, err := h.render(series, nil)
	if err != nil {
		log.Printf("ERROR: %s: %v", c.Path(), err)
		return browserError(c, fiber.StatusInternalServerError)
	}
	return browserImage(c, series.Len(), img)
}

func (h *handler) getMonthImage(c *fiber.Ctx) error {
	device := c.Params(paramDevice)
	yearMonth := c.Params(paramYearMonth)
	h.debugf("%s, %s, %s", c.Path(), device, yearMonth)

	ctx, cancel := h.context(c)
	defer cancel()

	series, err := h.service.MonthSeries(ctx, device, yearMonth)
	if err != nil {
		if weather.IsClientError(err) {
			log.Printf("WARN: %s: %v", c.Path(), err)
			return browserError(c, fiber.StatusBadRequest)
		}
		return toHTTPError(c, err)
	}
	img, err := h.render(series, nil)
	if err != nil {
		log.Printf("ERROR: %s: %v", c.Path(), err)
		return browserError(c, fiber.StatusInternalServerError)
	}
	return browserImage(c, series.Len(), img)
}

// getCompPrevYearImage overlays the month one year earlier. Nothing is
// plotted unless both months hold data.
func (h *handler) getCompPrevYearImage(c *fiber.Ctx) error {
	device := c.Params(paramDevice)
	yearMonth := c.Params(paramYearMonth)
	h.debugf("%s, %s, %s", c.Path(), device, yearMonth)

	ctx, cancel := h.context(c)
	defer cancel()

	cmp, err := h.service.CompareWithPreviousYear(ctx, device, yearMonth)
	if err != nil {
		if weather.IsClientError(err) {
			log.Printf("WARN: %s: %v", c.Path(), err)
			return browserError(c, fiber.StatusBadRequest)
		}
		return toHTTPError(c, err)
	}
	if cmp.Current.IsEmpty() || cmp.Previous.IsEmpty() {
		return browserImage(c, 0, nil)
	}

	img, err := h.renderer.RenderComparison(weather.NewTable(cmp.Current), weather.NewTable(cmp.Previous), nil)
	if err != nil {
		log.Printf("ERROR: %s: %v", c.Path(), err)
		return browserError(c, fiber.StatusInternalServerError)
	}
	return browserImage(c, cmp.Current.Len(), &img)
}

type lastDataView struct {
	MeasurementTime   *string           `json:"measurement_time"`
	TempOut           *float64          `json:"temp_out"`
	TempIn            *float64          `json:"temp_in"`
	Humid             *float64          `json:"humid"`
	Pressure          *float64          `json:"pressure"`
	RecCount          int               `json:"rec_count"`
	TempOutStatToday  *weather.StatView `json:"temp_out_stat_today"`
	TempOutStatBefore *weather.StatView `json:"temp_out_stat_before"`
}

func (h *handler) getLastDataForPhone(c *fiber.Ctx) error {
	if err := h.checkToken(c); err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	device, err := h.deviceQuery(ctx, c)
	if err != nil {
		return err
	}

	report, err := h.service.LatestWithStats(ctx, device)
	if err != nil {
		return toHTTPError(c, err)
	}

	var view lastDataView
	if o := report.Observation; o != nil {
		mt := o.MeasurementTime.Format(dateutil.LayoutDateTimeHM)
		view = lastDataView{
			MeasurementTime:   &mt,
			TempOut:           nullable(o.TempOut),
			TempIn:            nullable(o.TempIn),
			Humid:             nullable(o.Humid),
			Pressure:          nullable(o.Pressure),
			RecCount:          1,
			TempOutStatToday:  dayStatView(report.Today),
			TempOutStatBefore: dayStatView(report.Before),
		}
	}
	return phoneOK(c, view)
}

func (h *handler) getFirstRegisterDayForPhone(c *fiber.Ctx) error {
	if err := h.checkToken(c); err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	device, err := h.deviceQuery(ctx, c)
	if err != nil {
		return err
	}

	first, err := h.service.FirstRegisteredDay(ctx, device)
	if err != nil {
		return toHTTPError(c, err)
	}
	h.debugf("first register day of %s: %v", device, first)

	if first == nil {
		return phoneOK(c, fiber.Map{"first_register_day": nil, "rec_count": 0})
	}
	return phoneOK(c, fiber.Map{
		"first_register_day": first.Format(dateutil.LayoutDate),
		"rec_count":          1,
	})
}

// getTodayImageForPhone plots the system date only; phones pick older days
// through getbeforedaysimageforphone.
func (h *handler) getTodayImageForPhone(c *fiber.Ctx) error {
	if err := h.checkToken(c); err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	device, err := h.deviceQuery(ctx, c)
	if err != nil {
		return err
	}
	size, err := h.imageSize(c)
	if err != nil {
		return err
	}

	series, err := h.service.DaySeries(ctx, device, h.opts.Now())
	if err != nil {
		return toHTTPError(c, err)
	}
	img, err := h.render(series, &size)
	if err != nil {
		return err
	}
	return phoneOK(c, fiber.Map{"img_src": img, "rec_count": series.Len()})
}

func (h *handler) getBeforeDaysImageForPhone(c *fiber.Ctx) error {
	if err := h.checkToken(c); err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	device, err := h.deviceQuery(ctx, c)
	if err != nil {
		return err
	}

	endDate := h.opts.Now().In(h.service.Location()).Format(dateutil.LayoutDate)
	if hasQuery(c, paramStartDay) {
		endDate = c.Query(paramStartDay)
		if err := validate.Var(endDate, startDayRule); err != nil {
			return errStartDayInvalid
		}
	}

	if !hasQuery(c, paramBeforeDays) {
		return errBeforeDaysRequired
	}
	beforeDays, err := strconv.Atoi(c.Query(paramBeforeDays))
	if err != nil {
		return errBeforeDaysInvalid
	}
	if err := validate.Var(beforeDays, beforeDaysRule); err != nil {
		return errBeforeDaysInvalid
	}

	size, err := h.imageSize(c)
	if err != nil {
		return err
	}

	series, err := h.service.DayRangeSeries(ctx, device, endDate, beforeDays)
	if err != nil {
		return toHTTPError(c, err)
	}
	img, err := h.render(series, &size)
	if err != nil {
		return err
	}
	return phoneOK(c, fiber.Map{"img_src": img, "rec_count": series.Len()})
}

func (h *handler) checkToken(c *fiber.Ctx) error {
	h.debugf("%s, headers: %s", c.Path(), c.Request().Header.String())
	if c.Get(h.opts.PhoneTokenHeader) != h.opts.PhoneToken || h.opts.PhoneToken == "" {
		log.Printf("WARN: %s: invalid request token", c.Path())
		return errTokenMismatch
	}
	return nil
}

// deviceQuery validates device_name: present, 1 to 20 characters, and
// registered.
func (h *handler) deviceQuery(ctx context.Context, c *fiber.Ctx) (string, error) {
	if !hasQuery(c, paramDevice) {
		return "", errDeviceRequired
	}
	device := c.Query(paramDevice)
	if err := validate.Var(device, deviceNameRule); err != nil {
		return "", errDeviceInvalid
	}

	exists, err := h.service.DeviceExists(ctx, device)
	if err != nil {
		return "", toHTTPError(c, err)
	}
	if !exists {
		return "", errDeviceNotFound
	}
	return device, nil
}

func (h *handler) imageSize(c *fiber.Ctx) (chart.PhoneImageSize, error) {
	size, err := chart.ParsePhoneImageSize(c.Get(h.opts.PhoneImageSizeHeader))
	if err != nil {
		log.Printf("WARN: %s: %v", c.Path(), err)
		if errors.Is(err, chart.ErrImageSizeRequired) {
			return size, errImageSizeRequired
		}
		return size, errImageSizeInvalid
	}
	h.debugf("phone image size: %s", size)
	return size, nil
}

// render plots a non-empty series; an empty one yields no image.
func (h *handler) render(series weather.ObservationSeries, phone *chart.PhoneImageSize) (*string, error) {
	if series.IsEmpty() {
		return nil, nil
	}
	t := weather.NewTable(series)
	img, err := h.renderer.Render(t, weather.Summarize(t), phone)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", series.Window, err)
	}
	return &img, nil
}

func hasQuery(c *fiber.Ctx, key string) bool {
	return c.Context().QueryArgs().Has(key)
}

func phoneOK(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": fiber.Map{"code": 0, "message": "OK"},
		"data":   data,
	})
}

func browserImage(c *fiber.Ctx, recCount int, img *string) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"img_src":   img,
			"rec_count": recCount,
		},
	})
}

func browserError(c *fiber.Ctx, status int) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "code": status})
}

// dayStatView renders a day's statistics with the day itself as
// measurement_date, even when the day held no rows.
func dayStatView(ds weather.DayStat) *weather.StatView {
	v := ds.Stat.View(true)
	day := ds.Date.Format(dateutil.LayoutDate)
	v.MeasurementDate = &day
	return &v
}

// nullable maps a missing reading to JSON null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
