package models

import "time"

// Session представляет загруженное резюме, ожидающее оплаты или
// оптимизации. SessionID — единственный ключ, известный клиенту после
// оплаты, поэтому генерируется криптографически случайным (не короче
// 128 бит) и выступает в роли capability-токена. Истечение сессии
// определяется только полем ExpiresAt: чтение фильтрует истёкшие
// записи, фоновая чистка их удаляет.
type Session struct {
	SessionID     string    // Непредсказуемый идентификатор сессии
	Email         string    // Email пользователя
	Plan          string    // Выбранный тариф
	Template      string    // Идентификатор шаблона рендеринга
	CVData        string    // Извлечённый текст резюме
	JobPosting    string    // Текст вакансии (опционально)
	PhotoData     string    // Фото в base64 (опционально)
	OptimizedText string    // Результат оптимизации, пусто до первого вызова
	CreatedAt     time.Time // Дата создания
	ExpiresAt     time.Time // Дата окончания хранения
}

// DummySession используется для приёма данных из JSON-запроса на
// создание сессии, прежде чем конвертировать их в Session.
type DummySession struct {
	Email      string `json:"email" validate:"required,email"` // Email плательщика
	Plan       string `json:"plan" validate:"required"`        // Название тарифа
	CVText     string `json:"cv_text" validate:"required"`     // Текст резюме
	JobPosting string `json:"job_posting,omitempty"`           // Текст вакансии
	Template   string `json:"template,omitempty"`              // Шаблон рендеринга
	Photo      string `json:"photo,omitempty"`                 // Фото в base64
}

// CheckoutInfo — результат создания сессии: адрес страницы оплаты
// и идентификатор созданной сессии для последующего опроса.
type CheckoutInfo struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// OptimizeResult — результат успешной оптимизации.
type OptimizeResult struct {
	OptimizedText string `json:"optimized_text"`
	RemainingUses int    `json:"remaining_uses"`
}
