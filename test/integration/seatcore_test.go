package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/tablewise/seatcore/internal/adapters/mongo"
	"github.com/tablewise/seatcore/internal/adapters/postgres"
	"github.com/tablewise/seatcore/internal/adapters/rabbit"
	redisadapter "github.com/tablewise/seatcore/internal/adapters/redis"
	"github.com/tablewise/seatcore/internal/admin"
	"github.com/tablewise/seatcore/internal/booking"
	"github.com/tablewise/seatcore/internal/clock"
	"github.com/tablewise/seatcore/internal/config"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/hold"
	httphandler "github.com/tablewise/seatcore/internal/http"
	"github.com/tablewise/seatcore/internal/idempotency"
	"github.com/tablewise/seatcore/internal/observability"
	"github.com/tablewise/seatcore/internal/ratelimit"
	"github.com/tablewise/seatcore/internal/reservation"
	"github.com/tablewise/seatcore/internal/sweeper"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const baseURL = "http://localhost:8081"

func TestIntegration_HoldCommitExpire(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongosh", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672").WithBasicAuth("guest", "guest"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	crdbHost, err := crdbContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	crdbPort, err := crdbContainer.MappedPort(ctx, "26257")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		PostgresDSN: "postgresql://root@" + crdbHost + ":" + crdbPort.Port() + "/defaultdb?sslmode=disable",
		MongoURI:    "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:   redisHost + ":" + redisPort.Port(),
		RabbitURL:   "amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/",
		HTTPAddr:    ":8081",
		HoldTTL:     2 * time.Second,
		SweepBatch:  100,
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		t.Fatal(err)
	}
	store := postgres.NewStore(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("seatcore_test")
	logger := observability.NewLogger()
	floorplans := mongoadapter.NewFloorPlanRepository(mongoDB, logger)
	auditLog := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewReplays(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	pub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}

	// Subscribe to seat status changes before generating any, the way a
	// floor-plan view does.
	consumer, err := rabbit.NewConsumer(rabbitConn, "floorplan-view", "seat.*")
	if err != nil {
		t.Fatal(err)
	}
	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	clk := clock.NewSystem()
	holds := hold.NewService(store, pub, cache, clk, logger, cfg.HoldTTL)
	coordinator := reservation.NewCoordinator(holds, logger)
	finalizer := booking.NewFinalizer(store, pub, cache, clk, logger)
	adminSvc := admin.NewService(store, auditLog, pub, cache, logger)
	sw := sweeper.New(store, pub, cache, clk, logger, cfg.SweepBatch)

	handlers := httphandler.NewHandlers(cfg, logger, coordinator, holds, finalizer, adminSvc, store, cache, floorplans, idemp)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httphandler.SetupRouter(handlers, logger, rl)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Error(err)
		}
	}()
	defer srv.Shutdown(ctx)
	time.Sleep(100 * time.Millisecond)

	// Provision a six-seat table with floor plan geometry.
	var tableResp struct {
		TableID uuid.UUID `json:"table_id"`
	}
	status := postJSON(t, "/v1/admin/tables", map[string]interface{}{
		"venue":    "Back Room",
		"name":     "T1",
		"capacity": 6,
		"seats": []map[string]interface{}{
			{"number": 1, "x": 0, "y": 0},
			{"number": 2, "x": 1, "y": 0},
		},
	}, &tableResp)
	if status != http.StatusCreated {
		t.Fatalf("create table status = %d", status)
	}
	tableID := tableResp.TableID.String()

	// Hold two seats for alice.
	var holdResp struct {
		HoldID    uuid.UUID `json:"hold_id"`
		ExpiresAt string    `json:"expires_at"`
	}
	status = postJSON(t, "/v1/holds", map[string]interface{}{
		"table_id":      tableID,
		"seat_numbers":  []int{1, 2},
		"owner_session": "sess-alice",
	}, &holdResp)
	if status != http.StatusCreated {
		t.Fatalf("create hold status = %d", status)
	}
	if _, err := time.Parse(time.RFC3339, holdResp.ExpiresAt); err != nil {
		t.Fatalf("bad expires_at %q: %v", holdResp.ExpiresAt, err)
	}

	// Bob loses the overlap and is told exactly which seat is contested.
	var conflictResp struct {
		Error            string `json:"error"`
		UnavailableSeats []int  `json:"unavailable_seats"`
	}
	status = postJSON(t, "/v1/holds", map[string]interface{}{
		"table_id":      tableID,
		"seat_numbers":  []int{2, 3},
		"owner_session": "sess-bob",
	}, &conflictResp)
	if status != http.StatusConflict {
		t.Fatalf("overlap hold status = %d, want 409", status)
	}
	if len(conflictResp.UnavailableSeats) != 1 || conflictResp.UnavailableSeats[0] != 2 {
		t.Fatalf("unavailable_seats = %v, want [2]", conflictResp.UnavailableSeats)
	}
	// All or nothing: seat 3 was not claimed by the failed request.
	if got := seatStatus(t, tableID, 3); got != "free" {
		t.Fatalf("seat 3 status = %s, want free", got)
	}

	// Alice commits.
	var commitResp struct {
		BookingID uuid.UUID `json:"booking_id"`
	}
	status = postJSON(t, "/v1/holds/"+holdResp.HoldID.String()+"/commit", map[string]interface{}{
		"owner_session": "sess-alice",
		"guest_name":    "Alice",
		"guest_count":   2,
	}, &commitResp)
	if status != http.StatusCreated {
		t.Fatalf("commit status = %d", status)
	}
	if got := seatStatus(t, tableID, 1); got != "booked" {
		t.Fatalf("seat 1 status = %s, want booked", got)
	}

	// A commit retry by the same session lands on the same booking.
	var retryResp struct {
		BookingID uuid.UUID `json:"booking_id"`
	}
	status = postJSON(t, "/v1/holds/"+holdResp.HoldID.String()+"/commit", map[string]interface{}{
		"owner_session": "sess-alice",
		"guest_name":    "Alice",
	}, &retryResp)
	if status != http.StatusCreated {
		t.Fatalf("commit retry status = %d", status)
	}
	if retryResp.BookingID != commitResp.BookingID {
		t.Fatalf("retry booking = %s, want %s", retryResp.BookingID, commitResp.BookingID)
	}

	// Any other session is pointed at the winning booking.
	var lostResp struct {
		Error     string    `json:"error"`
		BookingID uuid.UUID `json:"booking_id"`
	}
	status = postJSON(t, "/v1/holds/"+holdResp.HoldID.String()+"/commit", map[string]interface{}{
		"owner_session": "sess-bob",
		"guest_name":    "Bob",
	}, &lostResp)
	if status != http.StatusConflict {
		t.Fatalf("rival commit status = %d, want 409", status)
	}
	if lostResp.BookingID != commitResp.BookingID {
		t.Fatalf("rival told booking = %s, want %s", lostResp.BookingID, commitResp.BookingID)
	}

	// The booking view confirms.
	var bookingResp struct {
		Status      string `json:"status"`
		SeatNumbers []int  `json:"seat_numbers"`
	}
	if status := getJSON(t, "/v1/bookings/"+commitResp.BookingID.String(), &bookingResp); status != http.StatusOK {
		t.Fatalf("get booking status = %d", status)
	}
	if bookingResp.Status != "confirmed" || len(bookingResp.SeatNumbers) != 2 {
		t.Fatalf("booking = %+v", bookingResp)
	}

	// Abandonment: carol holds a seat and walks away. After the deadline her
	// hold reads as expired, the sweeper reclaims the seat, and dave gets it.
	var carolHold struct {
		HoldID uuid.UUID `json:"hold_id"`
	}
	status = postJSON(t, "/v1/holds", map[string]interface{}{
		"table_id":      tableID,
		"seat_numbers":  []int{4},
		"owner_session": "sess-carol",
	}, &carolHold)
	if status != http.StatusCreated {
		t.Fatalf("carol hold status = %d", status)
	}
	time.Sleep(cfg.HoldTTL + 500*time.Millisecond)

	var carolState struct {
		Status string `json:"status"`
	}
	if status := getJSON(t, "/v1/holds/"+carolHold.HoldID.String(), &carolState); status != http.StatusOK {
		t.Fatalf("get hold status = %d", status)
	}
	if carolState.Status != "expired" {
		t.Fatalf("abandoned hold status = %s, want expired", carolState.Status)
	}

	swept, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}
	if got := seatStatus(t, tableID, 4); got != "free" {
		t.Fatalf("seat 4 status = %s after sweep, want free", got)
	}

	status = postJSON(t, "/v1/holds", map[string]interface{}{
		"table_id":      tableID,
		"seat_numbers":  []int{4},
		"owner_session": "sess-dave",
	}, &struct{}{})
	if status != http.StatusCreated {
		t.Fatalf("dave hold status = %d, want 201", status)
	}

	// The floor plan stored at provisioning is served back.
	var planResp struct {
		Name  string `json:"name"`
		Seats []struct {
			Number int `json:"number"`
		} `json:"seats"`
	}
	if status := getJSON(t, "/v1/tables/"+tableID+"/floorplan", &planResp); status != http.StatusOK {
		t.Fatalf("floorplan status = %d", status)
	}
	if planResp.Name != "T1" || len(planResp.Seats) != 2 {
		t.Fatalf("floorplan = %+v", planResp)
	}

	// Every transition above was pushed to the floor-plan queue.
	var changes []domain.SeatStatusChangedEvent
	deadline := time.After(5 * time.Second)
drain:
	for {
		select {
		case d := <-deliveries:
			if d.RoutingKey != domain.EventSeatStatusChanged {
				continue
			}
			var ev domain.SeatStatusChangedEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				t.Fatalf("bad event payload: %v", err)
			}
			changes = append(changes, ev)
			// held 1,2 + booked 1,2 + carol held 4 + sweep freed 4 + dave held 4.
			if len(changes) >= 7 {
				break drain
			}
		case <-deadline:
			break drain
		}
	}
	if len(changes) < 7 {
		t.Fatalf("received %d seat.status_changed events, want at least 7", len(changes))
	}
	for _, ev := range changes {
		if ev.TableID.String() != tableID {
			t.Fatalf("event for table %s, want %s", ev.TableID, tableID)
		}
	}
}

func postJSON(t *testing.T, path string, body map[string]interface{}, out interface{}) int {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func seatStatus(t *testing.T, tableID string, number int) string {
	t.Helper()
	var snap struct {
		Seats []struct {
			SeatNumber int    `json:"seat_number"`
			Status     string `json:"status"`
		} `json:"seats"`
	}
	if status := getJSON(t, "/v1/tables/"+tableID+"/seats", &snap); status != http.StatusOK {
		t.Fatalf("snapshot status = %d", status)
	}
	for _, seat := range snap.Seats {
		if seat.SeatNumber == number {
			return seat.Status
		}
	}
	t.Fatalf("seat %d missing from snapshot", number)
	return ""
}
