package corpus

import "github.com/hyperjump/faqrag/internal/models"

// DemoSuffix is appended to the dataset name to mark demo provenance.
const DemoSuffix = " (Demo Veri Seti)"

var demoRecords = []models.FAQRecord{
	{
		Question: "Kredi kartı başvurusu nasıl yapılır?",
		Answer:   "Akbank müşterisiyseniz Akbank Mobil ve İnternet üzerinden, Akbank müşterisi değilseniz Akbank Mobil'i indirerek görüntülü görüşme ile hızlıca başvuru yapabilirsiniz. Ayrıca 444 25 25 Müşteri İletişim Merkezi, Axess.com.tr ve tüm şubelerimizden de başvuru yapılabilir.",
	},
	{
		Question: "Döviz hesabı açmak için ne gerekiyor?",
		Answer:   "Şubelerimizden veya mobil bankacılık üzerinden, kimlik belgenizle kolayca döviz hesabı açabilirsiniz. Ek bir belgeye gerek yoktur.",
	},
	{
		Question: "Hesap işletim ücreti alıyor musunuz?",
		Answer:   "Belirli şartları sağlayan müşterilerimizden hesap işletim ücreti alınmamaktadır. Detaylı bilgi için sözleşmenizi inceleyin.",
	},
	{
		Question: "Şifremi nasıl değiştirebilirim?",
		Answer:   "Şifrenizi Akbank Mobil veya Akbank İnternet üzerinden \"Şifre İşlemleri\" menüsünü kullanarak anında değiştirebilirsiniz.",
	},
	{
		Question: "Akbank mobil ile hangi işlemleri yapabilirim?",
		Answer:   "Mobil uygulama ile para transferi, fatura ödemeleri, yatırım işlemleri ve yeni ürün başvuruları dahil birçok bankacılık işlemini şubeye gitmeden gerçekleştirebilirsiniz.",
	},
}

// DemoRecords returns a copy of the built-in demo records.
func DemoRecords() []models.FAQRecord {
	out := make([]models.FAQRecord, len(demoRecords))
	copy(out, demoRecords)
	return out
}
